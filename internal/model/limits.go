package model

// Documented maximum byte lengths of stored strings and blobs.
const (
	MaxUserNameLen       = 32
	MaxVINLen            = 32
	MaxReportIDLen       = 32
	MaxShortFieldLen     = 32 // carId, brand, model, color, engineNumber
	MaxURILen            = 200
	MaxKeyBlobLen        = 256
	MaxReportSummaryLen  = 256
	MaxReportNotesLen    = 500
	MaxMessageLen        = 200
	MaxModificationsLen  = 500
	MaxMinesStampLen     = 64
	MaxConformityNoteLen = 500
)

// MaxCondition is the upper bound of every condition score.
const MaxCondition = 10
