package model

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/and161185/car-registry/internal/errs"
)

// Persisted layout: discriminator(8) then fields in declaration order; integers are
// little-endian fixed width, strings and blobs are u32 length-prefixed, options carry
// a u8 tag. Every record is zero-padded to its kind's Size.

const discLen = 8

func strSize(max int) int    { return 4 + max }
func optStrSize(max int) int { return 1 + strSize(max) }

const (
	optI64Size = 1 + 8
	optU64Size = 1 + 8
	optKeySize = 1 + KeyLen
)

// Size returns the constant encoded size of a record kind.
func Size(k Kind) int {
	switch k {
	case KindUser:
		return discLen + KeyLen + strSize(MaxUserNameLen) + 2*strSize(MaxURILen) + 2*strSize(MaxKeyBlobLen) +
			1 + 1 + optI64Size + optKeySize + 8 + 8 + 1
	case KindCar:
		return discLen + strSize(MaxVINLen) + 4*strSize(MaxShortFieldLen) + 2 + strSize(MaxShortFieldLen) +
			2*KeyLen + 8 + 1 + 8 + optI64Size + 1 + optStrSize(MaxURILen) + 8 + 1 + optU64Size + 1
	case KindBuyRequest:
		return discLen + KeyLen + strSize(MaxVINLen) + 2*KeyLen + 8 + 1 + 8 + 8 + optStrSize(MaxMessageLen) + 1
	case KindCarReport:
		return discLen + 2*KeyLen + strSize(MaxReportIDLen) + KeyLen + 3 + strSize(MaxURILen) +
			strSize(MaxReportSummaryLen) + strSize(MaxReportNotesLen) + 1 + optI64Size + 8 + 1
	case KindConformityReport:
		return discLen + 2*KeyLen + strSize(MaxReportIDLen) + KeyLen + 1 + strSize(MaxModificationsLen) +
			strSize(MaxMinesStampLen) + strSize(MaxURILen) + strSize(MaxConformityNoteLen) + 1 + optI64Size + 8 + 1
	}
	return 0
}

var discriminators = func() map[Kind][discLen]byte {
	m := make(map[Kind][discLen]byte, len(Kinds))
	for _, k := range Kinds {
		sum := blake2b.Sum256([]byte("record:" + string(k)))
		var d [discLen]byte
		copy(d[:], sum[:discLen])
		m[k] = d
	}
	return m
}()

// KindOf reads the discriminator of an encoded record.
func KindOf(data []byte) (Kind, error) {
	if len(data) < discLen {
		return "", errors.New("record too short")
	}
	for k, d := range discriminators {
		if string(d[:]) == string(data[:discLen]) {
			return k, nil
		}
	}
	return "", errors.New("unknown record discriminator")
}

// Decode decodes any encoded record using its discriminator.
func Decode(data []byte) (Record, error) {
	k, err := KindOf(data)
	if err != nil {
		return nil, err
	}
	r := New(k)
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return r, nil
}

type encoder struct {
	buf []byte
	err error
}

func newEncoder(k Kind) *encoder {
	e := &encoder{buf: make([]byte, 0, Size(k))}
	d := discriminators[k]
	e.buf = append(e.buf, d[:]...)
	return e
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) i64(v int64)  { e.u64(uint64(v)) }
func (e *encoder) key(k [KeyLen]byte) {
	e.buf = append(e.buf, k[:]...)
}

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) bytes(field string, b []byte, max int) {
	if len(b) > max {
		if e.err == nil {
			e.err = fmt.Errorf("%s exceeds %d bytes: %w", field, max, errs.ErrInvalidArgument)
		}
		return
	}
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(b)))
	e.buf = append(e.buf, b...)
	// reserve the unused tail so field offsets stay fixed
	e.buf = append(e.buf, make([]byte, max-len(b))...)
}

func (e *encoder) str(field, s string, max int) { e.bytes(field, []byte(s), max) }

func (e *encoder) optI64(v *int64) {
	if v == nil {
		e.u8(0)
		e.i64(0)
		return
	}
	e.u8(1)
	e.i64(*v)
}

func (e *encoder) optU64(v *uint64) {
	if v == nil {
		e.u8(0)
		e.u64(0)
		return
	}
	e.u8(1)
	e.u64(*v)
}

func (e *encoder) optKey(v *Pubkey) {
	if v == nil {
		e.u8(0)
		e.key(Pubkey{})
		return
	}
	e.u8(1)
	e.key(*v)
}

func (e *encoder) optStr(field string, v *string, max int) {
	if v == nil {
		e.u8(0)
		e.str(field, "", max)
		return
	}
	e.u8(1)
	e.str(field, *v, max)
}

func (e *encoder) finish(k Kind) ([]byte, error) {
	if e.err != nil {
		return nil, fmt.Errorf("encode %s: %w", k, e.err)
	}
	size := Size(k)
	if len(e.buf) != size {
		return nil, fmt.Errorf("encode %s: layout size %d != %d", k, len(e.buf), size)
	}
	return e.buf, nil
}

type decoder struct {
	data []byte
	off  int
	err  error
}

func newDecoder(k Kind, data []byte) *decoder {
	d := &decoder{data: data}
	if len(data) != Size(k) {
		d.err = fmt.Errorf("decode %s: size %d != %d", k, len(data), Size(k))
		return d
	}
	want := discriminators[k]
	if string(data[:discLen]) != string(want[:]) {
		d.err = fmt.Errorf("decode %s: discriminator mismatch", k)
		return d
	}
	d.off = discLen
	return d
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return make([]byte, n)
	}
	if d.off+n > len(d.data) {
		d.err = errors.New("decode: short buffer")
		return make([]byte, n)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8   { return d.take(1)[0] }
func (d *decoder) u16() uint16 { return binary.LittleEndian.Uint16(d.take(2)) }
func (d *decoder) u64() uint64 { return binary.LittleEndian.Uint64(d.take(8)) }
func (d *decoder) i64() int64  { return int64(d.u64()) }
func (d *decoder) bool() bool  { return d.u8() != 0 }

func (d *decoder) key() (k [KeyLen]byte) {
	copy(k[:], d.take(KeyLen))
	return k
}

func (d *decoder) bytes(max int) []byte {
	n := int(binary.LittleEndian.Uint32(d.take(4)))
	if n > max {
		if d.err == nil {
			d.err = fmt.Errorf("decode: length %d exceeds %d", n, max)
		}
		n = max
	}
	raw := d.take(max)
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, raw[:n])
	return out
}

func (d *decoder) str(max int) string { return string(d.bytes(max)) }

func (d *decoder) optI64() *int64 {
	tag, v := d.u8(), d.i64()
	if tag == 0 {
		return nil
	}
	return &v
}

func (d *decoder) optU64() *uint64 {
	tag, v := d.u8(), d.u64()
	if tag == 0 {
		return nil
	}
	return &v
}

func (d *decoder) optKey() *Pubkey {
	tag := d.u8()
	k := Pubkey(d.key())
	if tag == 0 {
		return nil
	}
	return &k
}

func (d *decoder) optStr(max int) *string {
	tag := d.u8()
	s := d.str(max)
	if tag == 0 {
		return nil
	}
	return &s
}

func (d *decoder) enum(names []string, what string) uint8 {
	v := d.u8()
	if d.err == nil && !enumValid(names, v) {
		d.err = fmt.Errorf("decode: invalid %s %d", what, v)
	}
	return v
}

// MarshalBinary encodes the user in its fixed layout.
func (u *User) MarshalBinary() ([]byte, error) {
	e := newEncoder(KindUser)
	e.key(u.Authority)
	e.str("userName", u.UserName, MaxUserNameLen)
	e.str("publicDataUri", u.PublicDataURI, MaxURILen)
	e.str("privateDataUri", u.PrivateDataURI, MaxURILen)
	e.bytes("governmentEncryptedKey", u.GovernmentEncryptedKey, MaxKeyBlobLen)
	e.bytes("recoveryEncryptedKey", u.RecoveryEncryptedKey, MaxKeyBlobLen)
	e.u8(uint8(u.Role))
	e.u8(uint8(u.VerificationStatus))
	e.optI64(u.VerifiedAt)
	e.optKey(u.VerifiedBy)
	e.i64(u.CreatedAt)
	e.i64(u.UpdatedAt)
	e.u8(u.Bump)
	return e.finish(KindUser)
}

// UnmarshalBinary decodes the user layout.
func (u *User) UnmarshalBinary(data []byte) error {
	d := newDecoder(KindUser, data)
	u.Authority = d.key()
	u.UserName = d.str(MaxUserNameLen)
	u.PublicDataURI = d.str(MaxURILen)
	u.PrivateDataURI = d.str(MaxURILen)
	u.GovernmentEncryptedKey = d.bytes(MaxKeyBlobLen)
	u.RecoveryEncryptedKey = d.bytes(MaxKeyBlobLen)
	u.Role = Role(d.enum(roleNames, "role"))
	u.VerificationStatus = VerificationStatus(d.enum(verificationNames, "verification status"))
	u.VerifiedAt = d.optI64()
	u.VerifiedBy = d.optKey()
	u.CreatedAt = d.i64()
	u.UpdatedAt = d.i64()
	u.Bump = d.u8()
	return d.err
}

// MarshalBinary encodes the car in its fixed layout.
func (c *Car) MarshalBinary() ([]byte, error) {
	e := newEncoder(KindCar)
	e.str("vin", c.VIN, MaxVINLen)
	e.str("carId", c.CarID, MaxShortFieldLen)
	e.str("brand", c.Brand, MaxShortFieldLen)
	e.str("model", c.Model, MaxShortFieldLen)
	e.u16(c.Year)
	e.str("color", c.Color, MaxShortFieldLen)
	e.str("engineNumber", c.EngineNumber, MaxShortFieldLen)
	e.key(c.Owner)
	e.key(c.RegisteredBy)
	e.i64(c.RegistrationDate)
	e.bool(c.IsActive)
	e.u64(c.TransferCount)
	e.optI64(c.LastInspectionDate)
	e.u8(uint8(c.InspectionStatus))
	e.optStr("latestInspectionReport", c.LatestInspectionReport, MaxURILen)
	e.u64(c.Mileage)
	e.bool(c.IsForSale)
	e.optU64(c.SalePrice)
	e.u8(c.Bump)
	return e.finish(KindCar)
}

// UnmarshalBinary decodes the car layout.
func (c *Car) UnmarshalBinary(data []byte) error {
	d := newDecoder(KindCar, data)
	c.VIN = d.str(MaxVINLen)
	c.CarID = d.str(MaxShortFieldLen)
	c.Brand = d.str(MaxShortFieldLen)
	c.Model = d.str(MaxShortFieldLen)
	c.Year = d.u16()
	c.Color = d.str(MaxShortFieldLen)
	c.EngineNumber = d.str(MaxShortFieldLen)
	c.Owner = d.key()
	c.RegisteredBy = d.key()
	c.RegistrationDate = d.i64()
	c.IsActive = d.bool()
	c.TransferCount = d.u64()
	c.LastInspectionDate = d.optI64()
	c.InspectionStatus = InspectionStatus(d.enum(inspectionNames, "inspection status"))
	c.LatestInspectionReport = d.optStr(MaxURILen)
	c.Mileage = d.u64()
	c.IsForSale = d.bool()
	c.SalePrice = d.optU64()
	c.Bump = d.u8()
	return d.err
}

// MarshalBinary encodes the buy request in its fixed layout.
func (b *BuyRequest) MarshalBinary() ([]byte, error) {
	e := newEncoder(KindBuyRequest)
	e.key(b.Car)
	e.str("vin", b.VIN, MaxVINLen)
	e.key(b.Buyer)
	e.key(b.Seller)
	e.u64(b.Amount)
	e.u8(uint8(b.Status))
	e.i64(b.CreatedAt)
	e.i64(b.UpdatedAt)
	e.optStr("message", b.Message, MaxMessageLen)
	e.u8(b.Bump)
	return e.finish(KindBuyRequest)
}

// UnmarshalBinary decodes the buy request layout.
func (b *BuyRequest) UnmarshalBinary(data []byte) error {
	d := newDecoder(KindBuyRequest, data)
	b.Car = d.key()
	b.VIN = d.str(MaxVINLen)
	b.Buyer = d.key()
	b.Seller = d.key()
	b.Amount = d.u64()
	b.Status = BuyRequestStatus(d.enum(buyNames, "buy request status"))
	b.CreatedAt = d.i64()
	b.UpdatedAt = d.i64()
	b.Message = d.optStr(MaxMessageLen)
	b.Bump = d.u8()
	return d.err
}

// MarshalBinary encodes the inspection report in its fixed layout.
func (r *CarReport) MarshalBinary() ([]byte, error) {
	e := newEncoder(KindCarReport)
	e.key(r.Car)
	e.key(r.Inspector)
	e.str("reportId", r.ReportID, MaxReportIDLen)
	e.key(r.CarOwner)
	e.u8(r.OverallCondition)
	e.u8(r.EngineCondition)
	e.u8(r.BodyCondition)
	e.str("fullReportUri", r.FullReportURI, MaxURILen)
	e.str("reportSummary", r.ReportSummary, MaxReportSummaryLen)
	e.str("notes", r.Notes, MaxReportNotesLen)
	e.u8(uint8(r.ApprovedByOwner))
	e.optI64(r.ApprovedAt)
	e.i64(r.ReportDate)
	e.u8(r.Bump)
	return e.finish(KindCarReport)
}

// UnmarshalBinary decodes the inspection report layout.
func (r *CarReport) UnmarshalBinary(data []byte) error {
	d := newDecoder(KindCarReport, data)
	r.Car = d.key()
	r.Inspector = d.key()
	r.ReportID = d.str(MaxReportIDLen)
	r.CarOwner = d.key()
	r.OverallCondition = d.u8()
	r.EngineCondition = d.u8()
	r.BodyCondition = d.u8()
	r.FullReportURI = d.str(MaxURILen)
	r.ReportSummary = d.str(MaxReportSummaryLen)
	r.Notes = d.str(MaxReportNotesLen)
	r.ApprovedByOwner = Approval(d.enum(approvalNames, "approval"))
	r.ApprovedAt = d.optI64()
	r.ReportDate = d.i64()
	r.Bump = d.u8()
	return d.err
}

// MarshalBinary encodes the conformity report in its fixed layout.
func (r *ConformityReport) MarshalBinary() ([]byte, error) {
	e := newEncoder(KindConformityReport)
	e.key(r.Car)
	e.key(r.ConformityExpert)
	e.str("reportId", r.ReportID, MaxReportIDLen)
	e.key(r.CarOwner)
	e.u8(uint8(r.ConformityStatus))
	e.str("modifications", r.Modifications, MaxModificationsLen)
	e.str("minesStamp", r.MinesStamp, MaxMinesStampLen)
	e.str("fullReportUri", r.FullReportURI, MaxURILen)
	e.str("notes", r.Notes, MaxConformityNoteLen)
	e.u8(uint8(r.AcceptedByOwner))
	e.optI64(r.AcceptedAt)
	e.i64(r.ReportDate)
	e.u8(r.Bump)
	return e.finish(KindConformityReport)
}

// UnmarshalBinary decodes the conformity report layout.
func (r *ConformityReport) UnmarshalBinary(data []byte) error {
	d := newDecoder(KindConformityReport, data)
	r.Car = d.key()
	r.ConformityExpert = d.key()
	r.ReportID = d.str(MaxReportIDLen)
	r.CarOwner = d.key()
	r.ConformityStatus = ConformityStatus(d.enum(conformityNames, "conformity status"))
	r.Modifications = d.str(MaxModificationsLen)
	r.MinesStamp = d.str(MaxMinesStampLen)
	r.FullReportURI = d.str(MaxURILen)
	r.Notes = d.str(MaxConformityNoteLen)
	r.AcceptedByOwner = Approval(d.enum(approvalNames, "approval"))
	r.AcceptedAt = d.optI64()
	r.ReportDate = d.i64()
	r.Bump = d.u8()
	return d.err
}
