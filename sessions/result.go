package sessions

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the {status, message, data} envelope returned to clients.
type Result struct {
	Status  Status  `json:"status"`
	Message *string `json:"message"`
	Data    any     `json:"data"`
}

func Success(data any) Result {
	return Result{Status: StatusSuccess, Data: data}
}

func Failed(data any) Result {
	return Result{Status: StatusFailed, Data: data}
}

// WithMessage returns a copy of r carrying msg.
func (r Result) WithMessage(msg string) Result {
	r.Message = &msg
	return r
}
