package processor

import "strings"

// DocumentType is one entry of the classification catalog.
type DocumentType struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// DocumentTypes lists the types the processing service can classify.
var DocumentTypes = []DocumentType{
	{Code: "AADHAAR", Label: "Aadhar Card"},
	{Code: "PAN", Label: "PAN Card"},
	{Code: "VOTERID", Label: "Voter ID"},
	{Code: "DRIVINGLICENSE", Label: "Driving License"},
	{Code: "RCBOOK", Label: "RC Book"},
	{Code: "PASSPORT", Label: "Passport"},
	{Code: "BANKSTATEMENT", Label: "Bank Statement"},
	{Code: "SALARYSLIP", Label: "Salary Slip"},
	{Code: "SHOPIMAGE", Label: "Shop Image"},
	{Code: "INVOICE", Label: "Invoice"},
}

// AcceptedMIMETypes are the upload formats the client may send.
var AcceptedMIMETypes = []string{
	"image/png",
	"image/jpeg",
	"image/jpg",
	"image/tiff",
	"application/pdf",
}

// AcceptedExtensions is the file-picker filter shown by the client.
const AcceptedExtensions = ".png,.pdf,.tiff,.jpeg,.jpg"

// LookupDocumentType resolves a code case-insensitively.
func LookupDocumentType(code string) (DocumentType, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, dt := range DocumentTypes {
		if dt.Code == code {
			return dt, true
		}
	}
	return DocumentType{}, false
}
