package models

import "time"

// RunningState is the machine state encoded in the running-signal tag's
// integer value. Absence of any recorded value is treated as Stopped.
type RunningState int

const (
	StateUnknown   RunningState = -1
	StateStopped   RunningState = 0
	StateRunning   RunningState = 1
	StateMinorStop RunningState = 2
)

// MinorStop is stored as its own value but is not treated as a stop by the
// transition logic. Pending product-owner confirmation.
func (s RunningState) IsStopped() bool {
	return s == StateStopped
}

func (s RunningState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	case StateMinorStop:
		return "MINOR_STOP"
	default:
		return "UNKNOWN"
	}
}

// TagType is the value type a tag's data events carry.
type TagType int

const (
	TagTypeUnknown TagType = -1
	TagTypeBoolean TagType = 0
	TagTypeInteger TagType = 1
	TagTypeFloat   TagType = 2
	TagTypeString  TagType = 3
)

// Tag is a named signal on the device. Exactly one tag carries the
// IsRunningSignal flag at any time.
type Tag struct {
	ID              int64
	Name            string
	Description     string
	IsRunningSignal bool
	Type            TagType
	SyncID          string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
}

type Product struct {
	ID          int64
	Name        string
	ProductCode string
	IdealCPH    float64
	SyncID      string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
}

type User struct {
	ID               int64
	FirstName        string
	LastName         string
	IsDeviceAdmin    bool
	IsDeviceOperator bool
	SyncID           string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	DeletedAt        *time.Time
}

// DowntimeReason is one node of the two-level cause taxonomy. A primary
// reason has no parent; a secondary reason has IsSecondaryFor set to the
// local id of its primary.
type DowntimeReason struct {
	ID             int64
	Name           string
	IsSecondaryFor *int64
	SyncID         string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
}

func (r DowntimeReason) IsPrimary() bool {
	return r.IsSecondaryFor == nil
}

// TagDataEvent is one observed value change or manually recorded fact.
// Immutable once created except for attaching a downtime reason and for the
// sync id / needs-resync bookkeeping.
type TagDataEvent struct {
	ID               int64
	TagID            int64
	ProductID        int64
	DowntimeReasonID *int64
	IntValue         int64
	FloatValue       float64
	StringValue      string
	SyncID           string
	NeedsResync      bool
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// LogType classifies device status-log entries.
type LogType int

const (
	LogStatus LogType = 0
	LogError  LogType = 1
)
