package middleware

import (
	"net/http"
	"strconv"

	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/model"
)

// Rejection is a terminal response produced by a pipeline stage.
type Rejection struct {
	Status     int
	Code       string
	Message    string
	Details    string
	RetryAfter int
}

func reject(status int, code string, message string) *Rejection {
	return &Rejection{Status: status, Code: code, Message: message}
}

func (rej *Rejection) write(w http.ResponseWriter) {
	if rej.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rej.RetryAfter))
	}
	writeFailure(w, rej.Status, &model.APIError{
		Code:    rej.Code,
		Message: rej.Message,
		Details: rej.Details,
	})
}

// Stage is one named step of request admission. Process either returns the
// request to hand to the next stage (possibly with an enriched context) or a
// Rejection that ends the request.
type Stage interface {
	Name() string
	Process(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection)
}

type stageFunc struct {
	name string
	fn   func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Process(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
	return s.fn(w, r)
}

// StageFunc adapts a function into a Stage.
func StageFunc(name string, fn func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection)) Stage {
	return stageFunc{name: name, fn: fn}
}

// Pipeline runs its stages in order and stops at the first rejection.
type Pipeline struct {
	stages  []Stage
	metrics *metrics.Metrics
}

func NewPipeline(m *metrics.Metrics, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, metrics: m}
}

// With returns a new pipeline with extra stages appended.
func (p *Pipeline) With(stages ...Stage) *Pipeline {
	combined := make([]Stage, 0, len(p.stages)+len(stages))
	combined = append(combined, p.stages...)
	combined = append(combined, stages...)
	return &Pipeline{stages: combined, metrics: p.metrics}
}

func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

func (p *Pipeline) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, stage := range p.stages {
			var rej *Rejection
			r, rej = stage.Process(w, r)
			if rej != nil {
				p.metrics.Rejected(stage.Name(), rej.Code)
				rej.write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
