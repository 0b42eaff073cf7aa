package ocpp

// Action names of the supported OCPP 1.6 subset. Further actions plug into
// the same dispatcher contract.
const (
	BootNotificationAction       = "BootNotification"
	AuthorizeAction              = "Authorize"
	StartTransactionAction       = "StartTransaction"
	StopTransactionAction        = "StopTransaction"
	HeartbeatAction              = "Heartbeat"
	DataTransferAction           = "DataTransfer"
	RemoteStartTransactionAction = "RemoteStartTransaction"
)

// Actions lists every action the dispatcher routes inbound.
func Actions() []string {
	return []string{
		BootNotificationAction,
		AuthorizeAction,
		StartTransactionAction,
		StopTransactionAction,
		HeartbeatAction,
		DataTransferAction,
	}
}

type BootNotificationRequest struct {
	ChargePointVendor string `json:"chargePointVendor"`
	ChargePointModel  string `json:"chargePointModel"`
}

type BootNotificationResponse struct {
	CurrentTime DateTime           `json:"currentTime"`
	Interval    int                `json:"interval"`
	Status      RegistrationStatus `json:"status"`
}

type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

type AuthorizeResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

type StartTransactionRequest struct {
	ConnectorID   int      `json:"connectorId"`
	IdTag         string   `json:"idTag"`
	MeterStart    int      `json:"meterStart"`
	Timestamp     DateTime `json:"timestamp"`
	ReservationID *int     `json:"reservationId,omitempty"`
}

type StartTransactionResponse struct {
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
	TransactionID int       `json:"transactionId"`
}

type StopTransactionRequest struct {
	TransactionID int      `json:"transactionId"`
	IdTag         string   `json:"idTag,omitempty"`
	MeterStop     int      `json:"meterStop"`
	Timestamp     DateTime `json:"timestamp"`
}

type StopTransactionResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

type HeartbeatRequest struct{}

type HeartbeatResponse struct {
	CurrentTime DateTime `json:"currentTime"`
}

type DataTransferRequest struct {
	VendorID  string `json:"vendorId"`
	MessageID string `json:"messageId,omitempty"`
	Data      string `json:"data,omitempty"`
}

type DataTransferResponse struct {
	Status DataTransferStatus `json:"status"`
}

// RemoteStartTransactionRequest is server-initiated: the central system asks
// a station to start a transaction for the given idTag.
type RemoteStartTransactionRequest struct {
	IdTag string `json:"idTag"`
}

type RemoteStartTransactionResponse struct {
	Status string `json:"status"`
}
