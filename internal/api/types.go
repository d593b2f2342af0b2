package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// dateFormat is used for calendar days such as next availability.
const dateFormat = "2006-01-02"

// Stage describes one catalogue entry.
type Stage struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Rank             int      `json:"rank"`
	AllowedNext      []string `json:"allowedNext"`
	Requirements     []string `json:"requirements"`
	TimeLimitMinutes int64    `json:"timeLimitMinutes"`
	Capacity         int      `json:"capacity"`
	CanSkip          bool     `json:"canSkip"`
	Terminal         bool     `json:"terminal"`
}

// StageListResponse wraps the ordered catalogue.
type StageListResponse struct {
	Stages []Stage `json:"stages"`
}

// Job describes a repair order.
type Job struct {
	ID                    int64    `json:"id"`
	ShopID                string   `json:"shopId"`
	Reference             string   `json:"reference"`
	CurrentStage          string   `json:"currentStage"`
	BoardStage            string   `json:"boardStage,omitempty"`
	NextStages            []string `json:"nextStages,omitempty"`
	StageEnteredAt        string   `json:"stageEnteredAt,omitempty"`
	CompletedRequirements []string `json:"completedRequirements"`
	EstimatedHours        float64  `json:"estimatedHours"`
	Priority              int      `json:"priority"`
	TechnicianID          string   `json:"technicianId,omitempty"`
	Version               int64    `json:"version"`
	CreatedAt             string   `json:"createdAt,omitempty"`
	UpdatedAt             string   `json:"updatedAt,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// TransitionRecord is one ledger row.
type TransitionRecord struct {
	ID              int64  `json:"id"`
	UUID            string `json:"uuid"`
	JobID           int64  `json:"jobId"`
	FromStage       string `json:"fromStage"`
	ToStage         string `json:"toStage"`
	MovementType    string `json:"movementType"`
	Reason          string `json:"reason"`
	TransitionTime  string `json:"transitionTime"`
	DurationMinutes *int64 `json:"durationMinutes"`
	TechnicianID    string `json:"technicianId,omitempty"`
	AuthorizedBy    string `json:"authorizedBy,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// HistoryResponse lists a job's ledger with derived cycle times.
type HistoryResponse struct {
	JobID             int64              `json:"jobId"`
	Transitions       []TransitionRecord `json:"transitions"`
	TotalCycleMinutes int64              `json:"totalCycleMinutes"`
	StageMinutes      map[string]int64   `json:"stageMinutes"`
}

// TransitionRequest is the body of a single transition request.
//
// Clients should send ExpectedStage as the stage they last displayed. With
// it, concurrent identical moves resolve to one success and 409 conflicts;
// without it, a duplicate of a move that already landed is validated against
// the new stage and may commit as a parallel move.
type TransitionRequest struct {
	JobID         int64  `json:"jobId,omitempty"`
	TargetStage   string `json:"targetStage"`
	TechnicianID  string `json:"technicianId,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Override      bool   `json:"override"`
	AuthorizedBy  string `json:"authorizedBy,omitempty"`
	Reason        string `json:"reason,omitempty"`
	ExpectedStage string `json:"expectedStage,omitempty"`
}

// BoardMoveRequest is the body of a board drop.
type BoardMoveRequest struct {
	BoardStage   string `json:"boardStage"`
	TechnicianID string `json:"technicianId,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Override     bool   `json:"override"`
	AuthorizedBy string `json:"authorizedBy,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ValidationResult is the validator verdict.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Reason       string   `json:"reason,omitempty"`
	UnknownStage string   `json:"unknownStage,omitempty"`
	CanOverride  bool     `json:"canOverride"`
	Missing      []string `json:"missing"`
	MovementType string   `json:"movementType,omitempty"`
	OverrideUsed bool     `json:"overrideUsed"`
}

// TransitionResponse is the outcome of a committed transition.
type TransitionResponse struct {
	Job        Job               `json:"job"`
	Transition *TransitionRecord `json:"transitionRecord,omitempty"`
	Validation ValidationResult  `json:"validation"`
	Unchanged  bool              `json:"unchanged,omitempty"`
}

// BatchRequest lists independent transition requests.
type BatchRequest struct {
	Transitions []TransitionRequest `json:"transitions"`
}

// BatchResult is one succeeded batch entry.
type BatchResult struct {
	Index int                `json:"index"`
	JobID int64              `json:"jobId"`
	Data  TransitionResponse `json:"data"`
}

// BatchFailure is one failed batch entry.
type BatchFailure struct {
	Index      int               `json:"index"`
	JobID      int64             `json:"jobId"`
	Kind       string            `json:"kind"`
	Error      string            `json:"error"`
	Validation *ValidationResult `json:"validation,omitempty"`
}

// BatchResponse reports every batch entry.
type BatchResponse struct {
	Results  []BatchResult  `json:"results"`
	Failures []BatchFailure `json:"failures"`
}

// StageLoad is one stage's occupancy.
type StageLoad struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	Capacity     int     `json:"capacity"`
	Utilization  float64 `json:"utilization"`
	IsBottleneck bool    `json:"isBottleneck"`
	Overdue      int     `json:"overdue"`
}

// WorkloadReport is the analyzer output for a shop.
type WorkloadReport struct {
	ShopID             string      `json:"shopId"`
	GeneratedAt        string      `json:"generatedAt"`
	Stages             []StageLoad `json:"stages"`
	Bottlenecks        []string    `json:"bottlenecks"`
	TotalActive        int         `json:"totalActive"`
	TotalCapacity      int         `json:"totalCapacity"`
	OverallUtilization float64     `json:"overallUtilization"`
	Overdue            int         `json:"overdue"`
	Unplaced           int         `json:"unplaced,omitempty"`
}

// TechnicianProjection is one technician's planned load.
type TechnicianProjection struct {
	TechnicianID      string   `json:"technicianId"`
	Name              string   `json:"name"`
	Skills            []string `json:"skills"`
	AssignedHours     float64  `json:"assignedHours"`
	Utilization       float64  `json:"utilization"`
	IsAvailable       bool     `json:"isAvailable"`
	NextAvailableDate string   `json:"nextAvailableDate"`
}

// AssignmentsResponse wraps a shop's technician projections.
type AssignmentsResponse struct {
	ShopID      string                 `json:"shopId"`
	Technicians []TechnicianProjection `json:"technicians"`
}

// BoardCard is a job on the board.
type BoardCard struct {
	JobID              int64  `json:"jobId"`
	Reference          string `json:"reference"`
	DetailedStage      string `json:"detailedStage"`
	StageName          string `json:"stageName"`
	TechnicianID       string `json:"technicianId,omitempty"`
	Priority           int    `json:"priority"`
	TimeInStageMinutes int64  `json:"timeInStageMinutes"`
}

// BoardColumn is one board stage.
type BoardColumn struct {
	Stage          string      `json:"stage"`
	Name           string      `json:"name"`
	DetailedStages []string    `json:"detailedStages"`
	Cards          []BoardCard `json:"cards"`
}

// Board is the shop's active jobs grouped by board stage.
type Board struct {
	ShopID      string        `json:"shopId"`
	GeneratedAt string        `json:"generatedAt"`
	Columns     []BoardColumn `json:"columns"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error      string            `json:"error"`
	Kind       string            `json:"kind,omitempty"`
	Retryable  bool              `json:"retryable"`
	Validation *ValidationResult `json:"validation,omitempty"`
}
