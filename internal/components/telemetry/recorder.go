package telemetry

import "sync"

// Report is a single call made against a RecorderAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

const (
	KindBroken  = "broken"
	KindWarning = "warning"
	KindDebug   = "debug"
	KindCount   = "count"
)

// RecorderAPI implements API by keeping every report in memory, it is meant
// for asserting on reports in tests.
type RecorderAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func NewRecorderAPI() *RecorderAPI {
	return &RecorderAPI{}
}

func (r *RecorderAPI) add(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: KindBroken, Id: id, Params: params})
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: KindWarning, Id: id, Params: params})
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: KindDebug, Id: msg, Params: params})
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.add(Report{Kind: KindCount, Id: id, Params: []any{count}})
}

// Reports returns a copy of the reports of the given kind.
func (r *RecorderAPI) Reports(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, rep := range r.reports {
		if rep.Kind == kind {
			out = append(out, rep)
		}
	}
	return out
}
