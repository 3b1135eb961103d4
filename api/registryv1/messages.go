// Package registryv1 is the wire contract of the registry.v1.Registry gRPC service.
//
// Messages are plain structs carried by the JSON codec registered in codec.go.
// Addresses and keys travel as base58 strings, byte blobs as base64.
package registryv1

type RegisterUserRequest struct {
	User                   string `json:"user"`
	UserName               string `json:"user_name"`
	PublicDataURI          string `json:"public_data_uri"`
	PrivateDataURI         string `json:"private_data_uri"`
	GovernmentEncryptedKey []byte `json:"government_encrypted_key"`
	RecoveryEncryptedKey   []byte `json:"recovery_encrypted_key"`
	Role                   string `json:"role"`
}

type VerifyUserRequest struct {
	Verifier string `json:"verifier"`
	Target   string `json:"target"`
	Approve  bool   `json:"approve"`
}

type RegisterCarRequest struct {
	Government   string `json:"government"`
	Car          string `json:"car"`
	VIN          string `json:"vin"`
	CarID        string `json:"car_id"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         uint16 `json:"year"`
	Color        string `json:"color"`
	EngineNumber string `json:"engine_number"`
	Owner        string `json:"owner"`
	Mileage      uint64 `json:"mileage"`
}

type SetForSaleRequest struct {
	Car   string `json:"car"`
	Price uint64 `json:"price"`
}

type CancelForSaleRequest struct {
	Car string `json:"car"`
}

type RequestBuyRequest struct {
	Car        string  `json:"car"`
	BuyRequest string  `json:"buy_request"`
	Message    *string `json:"message,omitempty"`
}

// DecideBuyRequest is shared by AcceptBuyRequest and RejectBuyRequest.
type DecideBuyRequest struct {
	Car        string `json:"car"`
	BuyRequest string `json:"buy_request"`
}

type TransferCarRequest struct {
	Car              string  `json:"car"`
	NewOwner         string  `json:"new_owner"`
	NewOwnerUser     string  `json:"new_owner_user"`
	NewOwnerUserName string  `json:"new_owner_user_name"`
	BuyRequest       *string `json:"buy_request,omitempty"`
}

type IssueCarReportRequest struct {
	Inspector        string `json:"inspector"`
	Car              string `json:"car"`
	Report           string `json:"report"`
	ReportID         string `json:"report_id"`
	OverallCondition uint8  `json:"overall_condition"`
	EngineCondition  uint8  `json:"engine_condition"`
	BodyCondition    uint8  `json:"body_condition"`
	FullReportURI    string `json:"full_report_uri"`
	ReportSummary    string `json:"report_summary"`
	Notes            string `json:"notes"`
}

type AcceptReportRequest struct {
	Car    string `json:"car"`
	Report string `json:"report"`
}

type IssueConformityReportRequest struct {
	Expert           string `json:"expert"`
	Car              string `json:"car"`
	Report           string `json:"report"`
	ReportID         string `json:"report_id"`
	ConformityStatus string `json:"conformity_status"`
	Modifications    string `json:"modifications"`
	MinesStamp       string `json:"mines_stamp"`
	FullReportURI    string `json:"full_report_uri"`
	Notes            string `json:"notes"`
}

type AcceptConformityReportRequest struct {
	Car    string `json:"car"`
	Report string `json:"report"`
}

// TransitionResponse lists the addresses a committed transition wrote, in write order.
type TransitionResponse struct {
	Created []string `json:"created,omitempty"`
	Updated []string `json:"updated,omitempty"`
}

type GetRecordRequest struct {
	Address string `json:"address"`
}

// GetRecordResponse carries the record in its persisted binary layout.
type GetRecordResponse struct {
	Kind string `json:"kind"`
	Data []byte `json:"data"`
}
