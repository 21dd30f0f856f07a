package lenders

// fallbackLenders is served when the configuration source cannot be read.
var fallbackLenders = []string{
	"HSBC",
	"Barclays",
	"NatWest",
	"Santander",
	"Halifax",
	"Nationwide",
	"Virgin Money",
	"Metro Bank",
	"Coventry Building Society",
	"Skipton Building Society",
	"Leeds Building Society",
	"Principality Building Society",
	"Newcastle Building Society",
	"Nottingham Building Society",
	"Pepper Money",
	"Accord Mortgages",
	"Fleet Mortgages",
	"KMC Lending",
	"LendInvest",
	"The Mortgage Lender",
	"Vida Home Loans",
	"Moda Mortgages",
	"Kent Reliance",
	"Furness Building Society",
	"Leek Building Society",
	"Scottish Widows",
	"Bank of Ireland",
	"Clydesdale Bank",
}

// FallbackLenders returns a copy of the built-in lender list, unsorted.
func FallbackLenders() []string {
	return append([]string(nil), fallbackLenders...)
}
