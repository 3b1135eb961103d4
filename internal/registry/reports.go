package registry

import (
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/guard"
	"github.com/and161185/car-registry/internal/model"
)

// IssueCarReportInput files an inspection of Car under the inspector account Inspector.
type IssueCarReportInput struct {
	Inspector        model.Address
	Car              model.Address
	Report           model.Address
	ReportID         string
	OverallCondition uint8
	EngineCondition  uint8
	BodyCondition    uint8
	FullReportURI    string
	ReportSummary    string
	Notes            string
}

// IssueCarReport creates an unapproved report that snapshots the car's current owner.
func (m *Machine) IssueCarReport(call Call, in IssueCarReportInput, inspector *model.User, car *model.Car, occupied bool) (Effects, error) {
	if err := text("reportId", in.ReportID, 1, model.MaxReportIDLen); err != nil {
		return Effects{}, err
	}
	bump, err := m.relation("report", in.Report, func() (model.Address, uint8, error) {
		return m.deriver.CarReport(in.Car, call.Caller, in.ReportID)
	})
	if err != nil {
		return Effects{}, err
	}
	if err := callerUser(call, inspector); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireRole(inspector, model.RoleInspector); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireVerified(inspector); err != nil {
		return Effects{}, err
	}
	for _, s := range []struct {
		name  string
		value uint8
	}{
		{"overallCondition", in.OverallCondition},
		{"engineCondition", in.EngineCondition},
		{"bodyCondition", in.BodyCondition},
	} {
		if s.value > model.MaxCondition {
			return Effects{}, fmt.Errorf("%s %d exceeds %d: %w", s.name, s.value, model.MaxCondition, errs.ErrInvalidArgument)
		}
	}
	if err := firstErr(
		text("fullReportUri", in.FullReportURI, 0, model.MaxURILen),
		text("reportSummary", in.ReportSummary, 0, model.MaxReportSummaryLen),
		textErr("notes", in.Notes, 0, model.MaxReportNotesLen, errs.ErrNotesTooLong),
	); err != nil {
		return Effects{}, err
	}
	if !car.IsActive {
		return Effects{}, fmt.Errorf("car %q is inactive: %w", car.VIN, errs.ErrInvalidState)
	}
	if occupied {
		return Effects{}, fmt.Errorf("report %q: %w", in.ReportID, errs.ErrAlreadyExists)
	}

	var eff Effects
	eff.create(in.Report, &model.CarReport{
		Car:              in.Car,
		Inspector:        call.Caller,
		ReportID:         in.ReportID,
		CarOwner:         car.Owner,
		OverallCondition: in.OverallCondition,
		EngineCondition:  in.EngineCondition,
		BodyCondition:    in.BodyCondition,
		FullReportURI:    in.FullReportURI,
		ReportSummary:    in.ReportSummary,
		Notes:            in.Notes,
		ApprovedByOwner:  model.ApprovalPending,
		ReportDate:       call.Now,
		Bump:             bump,
	})
	return eff, nil
}

// AcceptReportInput names the inspection report the owner approves.
type AcceptReportInput struct {
	Car    model.Address
	Report model.Address
}

// AcceptReport approves the report and records the inspection on the car.
func (m *Machine) AcceptReport(call Call, in AcceptReportInput, car *model.Car, report *model.CarReport) (Effects, error) {
	if report.Car != in.Car {
		return Effects{}, fmt.Errorf("report %q is for car %s: %w", report.ReportID, report.Car, errs.ErrInvalidReport)
	}
	if _, err := m.relation("report", in.Report, func() (model.Address, uint8, error) {
		return m.deriver.CarReport(report.Car, report.Inspector, report.ReportID)
	}); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireSigner(call.Signers, call.Caller, "caller"); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireKey(call.Caller, report.CarOwner, "report's car owner"); err != nil {
		return Effects{}, err
	}
	approved, err := report.ApprovedByOwner.Approve()
	if err != nil {
		return Effects{}, fmt.Errorf("report %q: %w", report.ReportID, err)
	}

	updatedReport := *report
	updatedReport.ApprovedByOwner = approved
	updatedReport.ApprovedAt = ptr(call.Now)

	var eff Effects
	eff.update(in.Report, &updatedReport)

	// An older report is latched but does not displace a newer inspection result.
	if car.LastInspectionDate != nil && report.ReportDate < *car.LastInspectionDate {
		return eff, nil
	}
	updatedCar := *car
	updatedCar.LastInspectionDate = ptr(report.ReportDate)
	updatedCar.LatestInspectionReport = ptr(report.FullReportURI)
	updatedCar.InspectionStatus = model.InspectionFailed
	if report.OverallCondition >= m.cfg.InspectionPassThreshold {
		updatedCar.InspectionStatus = model.InspectionPassed
	}
	eff.update(in.Car, &updatedCar)
	return eff, nil
}

// IssueConformityReportInput files a conformity assessment of Car under the expert account Expert.
type IssueConformityReportInput struct {
	Expert           model.Address
	Car              model.Address
	Report           model.Address
	ReportID         string
	ConformityStatus model.ConformityStatus
	Modifications    string
	MinesStamp       string
	FullReportURI    string
	Notes            string
}

// IssueConformityReport creates an unaccepted conformity report that snapshots the car's owner.
func (m *Machine) IssueConformityReport(call Call, in IssueConformityReportInput, expert *model.User, car *model.Car, occupied bool) (Effects, error) {
	if err := text("reportId", in.ReportID, 1, model.MaxReportIDLen); err != nil {
		return Effects{}, err
	}
	bump, err := m.relation("report", in.Report, func() (model.Address, uint8, error) {
		return m.deriver.ConformityReport(in.Car, call.Caller, in.ReportID)
	})
	if err != nil {
		return Effects{}, err
	}
	if err := callerUser(call, expert); err != nil {
		return Effects{}, err
	}
	if expert.Role != model.RoleConformityExpert {
		return Effects{}, fmt.Errorf("user %q has role %s: %w", expert.UserName, expert.Role, errs.ErrNotAuthorizedConformityExpert)
	}
	if !expert.Verified() {
		return Effects{}, fmt.Errorf("user %q is %s: %w", expert.UserName, expert.VerificationStatus, errs.ErrConformityExpertNotVerified)
	}
	if in.ConformityStatus > model.ConformityPass {
		return Effects{}, fmt.Errorf("conformity status %d: %w", in.ConformityStatus, errs.ErrInvalidArgument)
	}
	if err := firstErr(
		textErr("modifications", in.Modifications, 0, model.MaxModificationsLen, errs.ErrModificationsTooLong),
		textErr("minesStamp", in.MinesStamp, 0, model.MaxMinesStampLen, errs.ErrStampTooLong),
		textErr("notes", in.Notes, 0, model.MaxConformityNoteLen, errs.ErrNotesTooLong),
		text("fullReportUri", in.FullReportURI, 0, model.MaxURILen),
	); err != nil {
		return Effects{}, err
	}
	if !car.IsActive {
		return Effects{}, fmt.Errorf("car %q is inactive: %w", car.VIN, errs.ErrInvalidState)
	}
	if occupied {
		return Effects{}, fmt.Errorf("conformity report %q: %w", in.ReportID, errs.ErrAlreadyExists)
	}

	var eff Effects
	eff.create(in.Report, &model.ConformityReport{
		Car:              in.Car,
		ConformityExpert: call.Caller,
		ReportID:         in.ReportID,
		CarOwner:         car.Owner,
		ConformityStatus: in.ConformityStatus,
		Modifications:    in.Modifications,
		MinesStamp:       in.MinesStamp,
		FullReportURI:    in.FullReportURI,
		Notes:            in.Notes,
		AcceptedByOwner:  model.ApprovalPending,
		ReportDate:       call.Now,
		Bump:             bump,
	})
	return eff, nil
}

// AcceptConformityReportInput names the conformity report the owner accepts.
type AcceptConformityReportInput struct {
	Car    model.Address
	Report model.Address
}

// AcceptConformityReport accepts the report. The car itself is not modified.
func (m *Machine) AcceptConformityReport(call Call, in AcceptConformityReportInput, report *model.ConformityReport) (Effects, error) {
	if report.Car != in.Car {
		return Effects{}, fmt.Errorf("conformity report %q is for car %s: %w", report.ReportID, report.Car, errs.ErrInvalidReport)
	}
	if _, err := m.relation("report", in.Report, func() (model.Address, uint8, error) {
		return m.deriver.ConformityReport(report.Car, report.ConformityExpert, report.ReportID)
	}); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireSigner(call.Signers, call.Caller, "caller"); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireKey(call.Caller, report.CarOwner, "report's car owner"); err != nil {
		return Effects{}, err
	}
	accepted, err := report.AcceptedByOwner.Approve()
	if err != nil {
		return Effects{}, fmt.Errorf("conformity report %q: %w", report.ReportID, err)
	}

	updated := *report
	updated.AcceptedByOwner = accepted
	updated.AcceptedAt = ptr(call.Now)

	var eff Effects
	eff.update(in.Report, &updated)
	return eff, nil
}
