package aspect

type (
	Option[T any] func(*T)
)

func WithAspectName(name string) Option[aspect] {
	return func(o *aspect) {
		o.name = name
	}
}

// WithAspectPriority is the priority of advices that declare none.
func WithAspectPriority(n int) Option[aspect] {
	return func(o *aspect) {
		o.priority = n
	}
}

func WithAdvice(advices ...Advice) Option[aspect] {
	return func(o *aspect) {
		o.advices = append(o.advices, advices...)
	}
}

func WithPointcut(pointcuts ...Pointcut) Option[aspect] {
	return func(o *aspect) {
		o.pointcuts = append(o.pointcuts, pointcuts...)
	}
}

func WithIntroduction(introductions ...Introduction) Option[aspect] {
	return func(o *aspect) {
		o.introductions = append(o.introductions, introductions...)
	}
}

func WithAdviceName(name string) Option[advice] {
	return func(o *advice) {
		o.name = name
	}
}

func WithAdviceKind(kind AdviceKind) Option[advice] {
	return func(o *advice) {
		o.kind = kind
	}
}

func WithAdviceExpression(expr string) Option[advice] {
	return func(o *advice) {
		o.expression = expr
	}
}

func WithAdvicePriority(n int) Option[advice] {
	return func(o *advice) {
		o.priority = n
		o.hasPriority = true
	}
}

func WithPointcutName(name string) Option[namedPointcut] {
	return func(o *namedPointcut) {
		o.name = name
	}
}

func WithPointcutExpression(expr string) Option[namedPointcut] {
	return func(o *namedPointcut) {
		o.expression = expr
	}
}

// WithIntroducedInterface names the interface class to introduce.
func WithIntroducedInterface(name string) Option[introduction] {
	return func(o *introduction) {
		o.iface = name
	}
}

func WithIntroductionExpression(expr string) Option[introduction] {
	return func(o *introduction) {
		o.expression = expr
	}
}
