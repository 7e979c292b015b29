package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/exposurerisk/internal/adapters/http/bind"
	"github.com/okian/exposurerisk/internal/adapters/repository"
	"github.com/okian/exposurerisk/internal/domain/model"
	"github.com/okian/exposurerisk/internal/domain/types"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// detectionRequest mirrors the OpenAPI schema for POST /detections and
// POST /score.
type detectionRequest struct {
	RunID         string          `json:"run_id" validate:"omitempty,max=128"`
	ReferenceTime string          `json:"reference_time" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Windows       []windowRequest `json:"windows" validate:"dive"`
}

type windowRequest struct {
	Date                  string        `json:"date" validate:"required,dateonly"`
	ReportType            string        `json:"report_type" validate:"omitempty,max=64"`
	Infectiousness        string        `json:"infectiousness" validate:"omitempty,oneof=none standard high"`
	CalibrationConfidence string        `json:"calibration_confidence" validate:"omitempty,oneof=lowest low medium high unknown"`
	ScanInstances         []scanRequest `json:"scan_instances" validate:"dive"`
}

type scanRequest struct {
	TypicalAttenuation   int32 `json:"typical_attenuation" validate:"min=0,max=255"`
	SecondsSinceLastScan int32 `json:"seconds_since_last_scan" validate:"min=0"`
}

// toRun converts a validated request. Report types this build does not know
// become unknown rather than failing the request.
func (r *detectionRequest) toRun() (model.DetectionRun, error) {
	run := model.DetectionRun{
		RunID:   strings.TrimSpace(r.RunID),
		Windows: make([]model.ExposureWindow, 0, len(r.Windows)),
	}
	if r.ReferenceTime != "" {
		ref, err := time.Parse(time.RFC3339, r.ReferenceTime)
		if err != nil {
			return model.DetectionRun{}, err
		}
		run.ReferenceTime = ref
	}
	for i := range r.Windows {
		wr := &r.Windows[i]
		date, err := model.ParseDay(wr.Date)
		if err != nil {
			return model.DetectionRun{}, err
		}
		w := model.ExposureWindow{
			Date:          date,
			ReportType:    model.ParseReportType(wr.ReportType),
			ScanInstances: make([]model.ScanInstance, 0, len(wr.ScanInstances)),
		}
		_ = w.Infectiousness.UnmarshalText([]byte(wr.Infectiousness))
		_ = w.CalibrationConfidence.UnmarshalText([]byte(wr.CalibrationConfidence))
		for _, s := range wr.ScanInstances {
			w.ScanInstances = append(w.ScanInstances, model.ScanInstance{
				TypicalAttenuation:   s.TypicalAttenuation,
				SecondsSinceLastScan: s.SecondsSinceLastScan,
			})
		}
		run.Windows = append(run.Windows, w)
	}
	return run, nil
}

func parseDetectionRequest(r *http.Request) (model.DetectionRun, error) {
	req, err := bind.ParseJSON[detectionRequest](r)
	if err != nil {
		return model.DetectionRun{}, err
	}
	return req.toRun()
}

type ackResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	Duplicate bool   `json:"duplicate"`
}

type runError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type detectionResponse struct {
	RunID       string                 `json:"run_id"`
	Status      repository.Status      `json:"status"`
	SubmittedAt time.Time              `json:"submitted_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      *types.DetectionResult `json:"result,omitempty"`
	Error       *runError              `json:"error,omitempty"`
}

func toDetectionResponse(rec *repository.Record) detectionResponse {
	out := detectionResponse{RunID: rec.RunID, Status: rec.Status, SubmittedAt: rec.SubmittedAt}
	if !rec.CompletedAt.IsZero() {
		t := rec.CompletedAt
		out.CompletedAt = &t
	}
	if rec.Result != nil {
		res := types.FromResult(rec.Result)
		out.Result = &res
	}
	if rec.Status == repository.StatusFailed {
		out.Error = &runError{Code: rec.ErrorCode, Message: rec.Error}
	}
	return out
}

// DetectionsHandler handles async detection run requests.
type DetectionsHandler struct {
	deps Dependencies
}

// NewDetectionsHandler creates a new detections handler.
func NewDetectionsHandler(deps Dependencies) *DetectionsHandler {
	return &DetectionsHandler{deps: deps}
}

// HandlePostDetection handles POST /detections requests.
func (h *DetectionsHandler) HandlePostDetection(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_detection"
	run, err := parseDetectionRequest(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}

	runID, duplicate, err := h.deps.Submit(r.Context(), run)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", RunID: runID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", RunID: runID})
}

// HandleGetDetection handles GET /detections/{id} requests.
func (h *DetectionsHandler) HandleGetDetection(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_detection"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.Result(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetectionResponse(&rec))
}

// HandleListDetections handles GET /detections?limit=n requests.
func (h *DetectionsHandler) HandleListDetections(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_detections"
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	recs, err := h.deps.Recent(r.Context(), limit)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	out := make([]detectionResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toDetectionResponse(&recs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
