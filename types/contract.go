package types

import "time"

type Contract struct {
	ID             string
	Type           string
	ProductCode    string
	Status         string
	StartDate      time.Time
	MonthlyDeposit float64 // EUR, current monthly deposit amount
	Zip            string
	City           string
	Street         string
	HouseNumber    string
}

type User struct {
	Email     string
	FirstName string
	LastName  string
	Language  string
}
