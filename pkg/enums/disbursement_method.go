package enums

import "fmt"

// DisbursementMethod records how agent funds were released.
type DisbursementMethod string

const (
	DisbursementMethodBankTransfer DisbursementMethod = "bank_transfer"
	DisbursementMethodCash         DisbursementMethod = "cash"
	DisbursementMethodWallet       DisbursementMethod = "wallet"
)

var validDisbursementMethods = []DisbursementMethod{
	DisbursementMethodBankTransfer,
	DisbursementMethodCash,
	DisbursementMethodWallet,
}

// String implements fmt.Stringer.
func (d DisbursementMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisbursementMethod.
func (d DisbursementMethod) IsValid() bool {
	for _, candidate := range validDisbursementMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisbursementMethod converts raw input into a DisbursementMethod.
func ParseDisbursementMethod(value string) (DisbursementMethod, error) {
	for _, candidate := range validDisbursementMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid disbursement method %q", value)
}
