package models

// Wire payloads exchanged with the server. Every payload describing a
// reconcilable entity carries a sync id; the server is the issuing authority
// for sync ids, the device never invents one for reference entities.

type TagPayload struct {
	SyncID          string `json:"sync_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsRunningSignal bool   `json:"is_running_signal"`
	Type            int    `json:"type"`
	DeletedAt       string `json:"deleted_at,omitempty"`
}

type ProductPayload struct {
	SyncID      string  `json:"sync_id"`
	Name        string  `json:"name"`
	ProductCode string  `json:"product_code"`
	IdealCPH    float64 `json:"ideal_cph"`
	DeletedAt   string  `json:"deleted_at,omitempty"`
}

type UserPayload struct {
	SyncID           string `json:"sync_id"`
	FirstName        string `json:"fname"`
	LastName         string `json:"lname"`
	IsDeviceAdmin    bool   `json:"is_device_admin"`
	IsDeviceOperator bool   `json:"is_device_operator"`
	DeletedAt        string `json:"deleted_at,omitempty"`
}

// DowntimeReasonPayload references its parent by the parent's sync id,
// never by a local id. Local ids are meaningless outside the device.
type DowntimeReasonPayload struct {
	SyncID               string `json:"sync_id"`
	Name                 string `json:"name"`
	IsSecondaryForSyncID string `json:"is_secondary_for_sync_id,omitempty"`
	DeletedAt            string `json:"deleted_at,omitempty"`
}

// TagDataPayload is an outbound tag-data event with all foreign keys
// translated to sync ids and the timestamp converted to UTC.
type TagDataPayload struct {
	ID                   int64   `json:"id"`
	TagSyncID            string  `json:"tag_sync_id"`
	ProductSyncID        string  `json:"product_sync_id,omitempty"`
	DowntimeReasonSyncID string  `json:"downtime_reason_sync_id,omitempty"`
	IntValue             int64   `json:"int_value"`
	FloatValue           float64 `json:"float_value"`
	StringValue          string  `json:"string_value,omitempty"`
	CreatedAt            string  `json:"created_at"`
}

// TagDataAck is the server's acknowledgment for one pushed event.
type TagDataAck struct {
	ID     int64  `json:"id"`
	SyncID string `json:"sync_id"`
}

type DevicePayload struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type DeviceAck struct {
	SyncID    string `json:"sync_id"`
	UpdatedAt string `json:"updated_at"`
}

type HeartbeatPayload struct {
	Datetime string `json:"datetime"`
}

type ResyncPayload struct {
	Datetime string `json:"datetime"`
	Resync   bool   `json:"resync"`
}
