package ocpp

import "time"

// Subprotocol is the only WebSocket subprotocol the server accepts.
const Subprotocol = "ocpp1.6"

// Subprotocols returns the list offered during the WebSocket handshake.
func Subprotocols() []string {
	return []string{Subprotocol}
}

// ChargePointStatus is the reported status of a station.
type ChargePointStatus string

const (
	StatusAvailable ChargePointStatus = "Available"
	StatusCharging  ChargePointStatus = "Charging"
)

// RegistrationStatus is the central system's answer to a BootNotification.
type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationRejected RegistrationStatus = "Rejected"
)

// AuthorizationStatus qualifies an idTag in an IdTagInfo.
type AuthorizationStatus string

const (
	AuthorizationAccepted AuthorizationStatus = "Accepted"
	AuthorizationBlocked  AuthorizationStatus = "Blocked"
	AuthorizationExpired  AuthorizationStatus = "Expired"
	AuthorizationInvalid  AuthorizationStatus = "Invalid"
)

// DataTransferStatus is the outcome of a vendor DataTransfer exchange.
type DataTransferStatus string

const (
	DataTransferAccepted         DataTransferStatus = "Accepted"
	DataTransferRejected         DataTransferStatus = "Rejected"
	DataTransferUnknownMessageID DataTransferStatus = "UnknownMessageId"
	DataTransferUnknownVendorID  DataTransferStatus = "UnknownVendorId"
)

// IdTagInfo wraps the authorization decision for an idTag.
type IdTagInfo struct {
	Status AuthorizationStatus `json:"status"`
}

// DateTime marshals as the RFC 3339 string OCPP-J expects.
type DateTime struct {
	time.Time
}

// Now returns the current server time in UTC.
func Now() DateTime {
	return DateTime{Time: time.Now().UTC()}
}

func (dt DateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.UTC().Format(time.RFC3339) + `"`), nil
}

func (dt *DateTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	dt.Time = t
	return nil
}
