package api

// Endpoint paths for paginated history resources. These are fetched through
// the paginate package using the client's raw Get; the constants double as
// rate-limit labels.
const (
	PathOrderHistory = "/equity/history/orders"
	PathDividends    = "/history/dividends"
	PathTransactions = "/history/transactions"
)
