package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedState is the dataset a fresh shop starts with when its store holds nothing yet.
func SeedState() State {
	return State{
		Customers: []Customer{
			{ID: 1, Name: "Aarav Sharma", Email: "aarav@shop.com"},
			{ID: 2, Name: "Priya Singh", Email: "priya@shop.com"},
			{ID: 3, Name: "Rohan Gupta", Email: "rohan@shop.com"},
			{ID: 4, Name: "Sneha Patel", Email: "sneha@shop.com"},
			{ID: 5, Name: "Vikram Kumar", Email: "vikram@shop.com"},
			{ID: 6, Name: "Anjali Reddy", Email: "anjali@shop.com"},
			{ID: 7, Name: "Mohammed Khan", Email: "mohammed@shop.com"},
			{ID: 8, Name: "Diya Mehta", Email: "diya@shop.com"},
			{ID: 9, Name: "Kabir Joshi", Email: "kabir@shop.com"},
			{ID: 10, Name: "Ishaan Verma", Email: "ishaan@shop.com"},
		},
		Loans: []Loan{
			seedLoan(101, 1, "Groceries", 1500, "2025-05-15", paid(500, "2025-05-01")),
			seedLoan(102, 1, "Milk Subscription", 600, "2025-06-01"),
			seedLoan(201, 2, "Tailoring Service", 2500, "2025-04-20", paid(1000, "2025-04-15"), paid(1000, "2025-04-25")),
			seedLoan(202, 2, "Fabric", 800, "2025-05-25"),
			seedLoan(301, 3, "Snacks & Drinks", 1200, "2025-05-10", paid(1200, "2025-05-05")),
			seedLoan(401, 4, "Vegetables", 750, "2025-05-18"),
			seedLoan(402, 4, "Cooking Oil", 400, "2025-06-05"),
			seedLoan(501, 5, "Hardware Supplies", 3200, "2025-04-30", paid(1000, "2025-04-28")),
			seedLoan(601, 6, "Stationery", 550, "2025-05-22"),
			seedLoan(701, 7, "Phone Recharge", 300, "2025-05-08", paid(300, "2025-05-02")),
			seedLoan(801, 8, "Cosmetics", 1800, "2025-06-10"),
			seedLoan(901, 9, "Dairy Products", 950, "2025-05-28"),
			seedLoan(1001, 10, "Cleaning Supplies", 650, "2025-05-12"),
		},
	}
}

func seedLoan(id, customerID int64, item string, amount int64, due string, repayments ...Repayment) Loan {
	if repayments == nil {
		repayments = []Repayment{}
	}
	return Loan{
		ID:         id,
		CustomerID: customerID,
		Item:       item,
		Principal:  decimal.NewFromInt(amount),
		DueDate:    mustDate(due),
		Repayments: repayments,
	}
}

func paid(amount int64, date string) Repayment {
	return Repayment{Amount: decimal.NewFromInt(amount), Date: mustDate(date)}
}

func mustDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
