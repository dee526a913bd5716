package badanno

//@Scope("singleton"
type Broken struct{}
