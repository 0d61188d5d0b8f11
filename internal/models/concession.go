package models

import "time"

// ApplicationStatus captures the review state of a concession application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// AcademicYear is the student's year of study.
type AcademicYear string

const (
	YearFE AcademicYear = "FE"
	YearSE AcademicYear = "SE"
	YearTE AcademicYear = "TE"
	YearBE AcademicYear = "BE"
)

// AcademicYears lists the accepted years in display order.
var AcademicYears = []AcademicYear{YearFE, YearSE, YearTE, YearBE}

// Branch is an engineering discipline.
type Branch string

const (
	BranchCivil       Branch = "Civil"
	BranchComputer    Branch = "Computer"
	BranchChemical    Branch = "Chemical"
	BranchElectronics Branch = "Electronics"
	BranchIT          Branch = "IT"
	BranchMechanical  Branch = "Mechanical"
)

// Branches lists the accepted branches in display order.
var Branches = []Branch{BranchCivil, BranchComputer, BranchChemical, BranchElectronics, BranchIT, BranchMechanical}

// Category is the applicant's reservation category.
type Category string

const (
	CategoryOpen  Category = "Open"
	CategoryOBC   Category = "OBC"
	CategorySC    Category = "SC"
	CategoryST    Category = "ST"
	CategoryOther Category = "Other"
)

// Categories lists the accepted categories.
var Categories = []Category{CategoryOpen, CategoryOBC, CategorySC, CategoryST, CategoryOther}

// ClassType is the travel class printed on the pass.
type ClassType string

const (
	ClassFirst  ClassType = "1st Class"
	ClassSecond ClassType = "2nd Class"
)

// ClassTypes lists the accepted travel classes.
var ClassTypes = []ClassType{ClassFirst, ClassSecond}

// Railway is the issuing railway authority.
type Railway string

const (
	RailwayCentral Railway = "Central Railway"
	RailwayWestern Railway = "Western Railway"
)

// Railways lists the accepted authorities.
var Railways = []Railway{RailwayCentral, RailwayWestern}

// PassType is the billing period of the concession.
type PassType string

const (
	PassMonthly   PassType = "Monthly"
	PassQuarterly PassType = "Quarterly"
)

// PassTypes lists the accepted billing periods.
var PassTypes = []PassType{PassMonthly, PassQuarterly}

// DocumentSlot names one of the three evidence categories.
type DocumentSlot string

const (
	SlotIDCard     DocumentSlot = "id_card"
	SlotAadhar     DocumentSlot = "aadhar"
	SlotFeeReceipt DocumentSlot = "fee_receipt"
)

// DocumentSlots lists every evidence slot.
var DocumentSlots = []DocumentSlot{SlotIDCard, SlotAadhar, SlotFeeReceipt}

// Valid reports whether s is a known slot.
func (s DocumentSlot) Valid() bool {
	switch s {
	case SlotIDCard, SlotAadhar, SlotFeeReceipt:
		return true
	}
	return false
}

// Column returns the persisted column holding the slot's reference.
func (s DocumentSlot) Column() string {
	return string(s) + "_url"
}

// Bucket returns the storage bucket used for the slot's files.
func (s DocumentSlot) Bucket() string {
	switch s {
	case SlotIDCard:
		return "id-cards"
	case SlotAadhar:
		return "aadhar"
	case SlotFeeReceipt:
		return "fee-receipts"
	}
	return "misc"
}

// DocumentPresence narrows listings by evidence availability.
type DocumentPresence string

const (
	DocumentsAny     DocumentPresence = "any"
	DocumentsWith    DocumentPresence = "withDocs"
	DocumentsWithout DocumentPresence = "withoutDocs"
)

// ConcessionApplication is a student's request for a discounted commuter pass.
type ConcessionApplication struct {
	ID                 string            `db:"id" json:"id"`
	StudentID          string            `db:"student_id" json:"student_id"`
	StudentName        string            `db:"student_name" json:"student_name"`
	Year               AcademicYear      `db:"year" json:"year"`
	Branch             Branch            `db:"branch" json:"branch"`
	Category           Category          `db:"category" json:"category"`
	DateOfBirth        Date              `db:"date_of_birth" json:"date_of_birth"`
	Age                int               `db:"age" json:"age"`
	FromStation        string            `db:"from_station" json:"from_station"`
	ToStation          string            `db:"to_station" json:"to_station"`
	ClassType          ClassType         `db:"class_type" json:"class_type"`
	Railway            Railway           `db:"railway_type" json:"railway_type"`
	PassType           PassType          `db:"pass_type" json:"pass_type"`
	ConcessionFormNo   string            `db:"concession_form_no" json:"concession_form_no"`
	SeasonTicketNo     string            `db:"season_ticket_no" json:"season_ticket_no"`
	PreviousPassDate   *Date             `db:"previous_pass_date" json:"previous_pass_date"`
	PreviousPassExpiry *Date             `db:"previous_pass_expiry" json:"previous_pass_expiry"`
	IDCardURL          *string           `db:"id_card_url" json:"id_card_url"`
	AadharURL          *string           `db:"aadhar_url" json:"aadhar_url"`
	FeeReceiptURL      *string           `db:"fee_receipt_url" json:"fee_receipt_url"`
	Status             ApplicationStatus `db:"status" json:"status"`
	ValidFrom          *time.Time        `db:"valid_from" json:"valid_from"`
	ValidUntil         *time.Time        `db:"valid_until" json:"valid_until"`
	IsExpired          bool              `db:"-" json:"is_expired"`
	SupersedesID       *string           `db:"supersedes_id" json:"supersedes_id,omitempty"`
	DecidedBy          *string           `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt          *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// Document returns the reference stored in slot, if any.
func (a *ConcessionApplication) Document(slot DocumentSlot) *string {
	switch slot {
	case SlotIDCard:
		return a.IDCardURL
	case SlotAadhar:
		return a.AadharURL
	case SlotFeeReceipt:
		return a.FeeReceiptURL
	}
	return nil
}

// SetDocument replaces the reference stored in slot.
func (a *ConcessionApplication) SetDocument(slot DocumentSlot, ref *string) {
	switch slot {
	case SlotIDCard:
		a.IDCardURL = ref
	case SlotAadhar:
		a.AadharURL = ref
	case SlotFeeReceipt:
		a.FeeReceiptURL = ref
	}
}

// ApplicationDraft holds applicant input prior to submission.
type ApplicationDraft struct {
	StudentName      string       `json:"student_name" validate:"required"`
	Year             AcademicYear `json:"year" validate:"required"`
	Branch           Branch       `json:"branch" validate:"required"`
	Category         Category     `json:"category" validate:"required"`
	DateOfBirth      Date         `json:"date_of_birth"`
	FromStation      string       `json:"from_station" validate:"required"`
	ToStation        string       `json:"to_station" validate:"required"`
	ClassType        ClassType    `json:"class_type" validate:"required"`
	Railway          Railway      `json:"railway_type" validate:"required"`
	PassType         PassType     `json:"pass_type" validate:"required"`
	ConcessionFormNo string       `json:"concession_form_no" validate:"required"`
	SeasonTicketNo   string       `json:"season_ticket_no"`
	PreviousPassDate *Date        `json:"previous_pass_date,omitempty"`
	SupersedesID     *string      `json:"supersedes_id,omitempty"`
	// Documents carries references produced by the document store; never bound from request bodies.
	Documents map[DocumentSlot]string `json:"-"`
}

// PassDates lets an administrator override the previous-pass window on approval.
type PassDates struct {
	IssueDate  Date `json:"issue_date"`
	ExpiryDate Date `json:"expiry_date"`
}

// Decision is an administrator's verdict on a pending application.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Status maps a decision to the resulting application status.
func (d Decision) Status() (ApplicationStatus, bool) {
	switch d {
	case DecisionApproved:
		return StatusApproved, true
	case DecisionRejected:
		return StatusRejected, true
	}
	return "", false
}

// ApplicationFilter narrows a listing of applications. Zero values mean "any".
type ApplicationFilter struct {
	Search           string            `json:"search,omitempty"`
	Status           ApplicationStatus `json:"status,omitempty"`
	Branch           Branch            `json:"branch,omitempty"`
	Year             AcademicYear      `json:"year,omitempty"`
	DocumentPresence DocumentPresence  `json:"document_presence,omitempty"`
}

// Completeness reports how many evidence slots are filled.
type Completeness struct {
	Uploaded int `json:"uploaded"`
	Total    int `json:"total"`
}

// DocumentLink is a signed, expiring pointer to one stored document.
type DocumentLink struct {
	Slot      DocumentSlot `json:"slot"`
	Ref       string       `json:"ref"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// DocumentBundle reports an application's evidence coverage and download links.
type DocumentBundle struct {
	ApplicationID string         `json:"application_id"`
	Completeness  Completeness   `json:"completeness"`
	Documents     []DocumentLink `json:"documents"`
}

// DecisionRequest is the administrator's decide payload.
type DecisionRequest struct {
	Decision  Decision   `json:"decision"`
	PassDates *PassDates `json:"pass_dates,omitempty"`
}

// ExtendRequest asks for the validity window to be pushed forward.
type ExtendRequest struct {
	Months int `json:"months"`
}
