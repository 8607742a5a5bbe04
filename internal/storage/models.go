package storage

type User struct {
	ID                 int64
	Username           string
	Email              string
	PasswordHash       string
	MonthlyBudgetCents int64
	ReportEmail        string
	BudgetSet          bool
	CreatedAt          int64
}

type Transaction struct {
	ID          int64
	UserID      int64
	Merchant    string
	AmountCents int64
	Type        string
	OccurredAt  int64
	CreatedAt   int64
}

type ReportDelivery struct {
	ID          int64
	UserID      int64
	Period      string
	Status      string
	Error       string
	AttemptedAt int64
}
