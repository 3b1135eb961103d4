package model

// Kind names a record type; it selects the layout and the stored discriminator.
type Kind string

const (
	KindUser             Kind = "User"
	KindCar              Kind = "Car"
	KindBuyRequest       Kind = "BuyRequest"
	KindCarReport        Kind = "CarReport"
	KindConformityReport Kind = "ConformityReport"
)

// Kinds lists every record kind.
var Kinds = []Kind{KindUser, KindCar, KindBuyRequest, KindCarReport, KindConformityReport}

// Record is a fixed-shape registry record with a stable encoded size.
type Record interface {
	Kind() Kind
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// New returns an empty record of the given kind, or nil for an unknown kind.
func New(k Kind) Record {
	switch k {
	case KindUser:
		return &User{}
	case KindCar:
		return &Car{}
	case KindBuyRequest:
		return &BuyRequest{}
	case KindCarReport:
		return &CarReport{}
	case KindConformityReport:
		return &ConformityReport{}
	}
	return nil
}

// User is an actor account; (Authority, UserName) is its natural key.
type User struct {
	Authority              Pubkey             `json:"authority"`
	UserName               string             `json:"userName"`
	PublicDataURI          string             `json:"publicDataUri"`
	PrivateDataURI         string             `json:"privateDataUri"`
	GovernmentEncryptedKey []byte             `json:"governmentEncryptedKey"`
	RecoveryEncryptedKey   []byte             `json:"recoveryEncryptedKey"`
	Role                   Role               `json:"role"`
	VerificationStatus     VerificationStatus `json:"verificationStatus"`
	VerifiedAt             *int64             `json:"verifiedAt,omitempty"`
	VerifiedBy             *Pubkey            `json:"verifiedBy,omitempty"`
	CreatedAt              int64              `json:"createdAt"`
	UpdatedAt              int64              `json:"updatedAt"`
	Bump                   uint8              `json:"bump"`
}

func (*User) Kind() Kind { return KindUser }

// Verified reports whether the user passed government verification.
func (u *User) Verified() bool { return u.VerificationStatus == VerificationVerified }

// Car is a registered vehicle; (RegisteredBy, VIN) is its natural key.
type Car struct {
	VIN                    string           `json:"vin"`
	CarID                  string           `json:"carId"`
	Brand                  string           `json:"brand"`
	Model                  string           `json:"model"`
	Year                   uint16           `json:"year"`
	Color                  string           `json:"color"`
	EngineNumber           string           `json:"engineNumber"`
	Owner                  Pubkey           `json:"owner"`
	RegisteredBy           Pubkey           `json:"registeredBy"`
	RegistrationDate       int64            `json:"registrationDate"`
	IsActive               bool             `json:"isActive"`
	TransferCount          uint64           `json:"transferCount"`
	LastInspectionDate     *int64           `json:"lastInspectionDate,omitempty"`
	InspectionStatus       InspectionStatus `json:"inspectionStatus"`
	LatestInspectionReport *string          `json:"latestInspectionReport,omitempty"`
	Mileage                uint64           `json:"mileage"`
	IsForSale              bool             `json:"isForSale"`
	SalePrice              *uint64          `json:"salePrice,omitempty"`
	Bump                   uint8            `json:"bump"`
}

func (*Car) Kind() Kind { return KindCar }

// EffectiveInspectionStatus reports Expired for a Passed inspection older than validity.
// A zero validity disables expiry.
func (c *Car) EffectiveInspectionStatus(now, validitySeconds int64) InspectionStatus {
	if c.InspectionStatus != InspectionPassed || validitySeconds <= 0 || c.LastInspectionDate == nil {
		return c.InspectionStatus
	}
	if now-*c.LastInspectionDate > validitySeconds {
		return InspectionExpired
	}
	return c.InspectionStatus
}

// BuyRequest is a purchase offer; (VIN, Buyer) is its natural key.
type BuyRequest struct {
	Car       Address          `json:"car"`
	VIN       string           `json:"vin"`
	Buyer     Pubkey           `json:"buyer"`
	Seller    Pubkey           `json:"seller"`
	Amount    uint64           `json:"amount"`
	Status    BuyRequestStatus `json:"status"`
	CreatedAt int64            `json:"createdAt"`
	UpdatedAt int64            `json:"updatedAt"`
	Message   *string          `json:"message,omitempty"`
	Bump      uint8            `json:"bump"`
}

func (*BuyRequest) Kind() Kind { return KindBuyRequest }

// CarReport is an inspection report; (Car, Inspector, ReportID) is its natural key.
type CarReport struct {
	Car              Address  `json:"car"`
	Inspector        Pubkey   `json:"inspector"`
	ReportID         string   `json:"reportId"`
	CarOwner         Pubkey   `json:"carOwner"`
	OverallCondition uint8    `json:"overallCondition"`
	EngineCondition  uint8    `json:"engineCondition"`
	BodyCondition    uint8    `json:"bodyCondition"`
	FullReportURI    string   `json:"fullReportUri"`
	ReportSummary    string   `json:"reportSummary"`
	Notes            string   `json:"notes"`
	ApprovedByOwner  Approval `json:"approvedByOwner"`
	ApprovedAt       *int64   `json:"approvedAt,omitempty"`
	ReportDate       int64    `json:"reportDate"`
	Bump             uint8    `json:"bump"`
}

func (*CarReport) Kind() Kind { return KindCarReport }

// ConformityReport is a conformity assessment; (Car, ConformityExpert, ReportID) is its natural key.
type ConformityReport struct {
	Car              Address          `json:"car"`
	ConformityExpert Pubkey           `json:"conformityExpert"`
	ReportID         string           `json:"reportId"`
	CarOwner         Pubkey           `json:"carOwner"`
	ConformityStatus ConformityStatus `json:"conformityStatus"`
	Modifications    string           `json:"modifications"`
	MinesStamp       string           `json:"minesStamp"`
	FullReportURI    string           `json:"fullReportUri"`
	Notes            string           `json:"notes"`
	AcceptedByOwner  Approval         `json:"acceptedByOwner"`
	AcceptedAt       *int64           `json:"acceptedAt,omitempty"`
	ReportDate       int64            `json:"reportDate"`
	Bump             uint8            `json:"bump"`
}

func (*ConformityReport) Kind() Kind { return KindConformityReport }
