package ir

// BindingRecord is the durable record of a persisted expression binding.
//
// A binding names a value that a keep-alive command keeps computing after
// the command that defined it completed. RemoteNet and Key together locate
// the value inside the execution environment.
type BindingRecord struct {
	Key         string `json:"key"`
	RemoteNet   string `json:"remote_net"`
	Environment string `json:"environment"`
	ValueType   string `json:"value_type"`
	Context     string `json:"context"`      // Canonical JSON of the tag context
	ExprKey     string `json:"expr_key"`     // Structural key of the persisted expression
	CreatedSeq  int64  `json:"created_seq"`  // Logical clock
	ReleasedSeq int64  `json:"released_seq"` // 0 while active
}

// Active reports whether the binding has not been released.
func (r BindingRecord) Active() bool {
	return r.ReleasedSeq == 0
}
