package models

import "github.com/google/uuid"

// Identity is who is checking out. It is one of AnonymousIdentity,
// RegisteredIdentity or BillingOnlyIdentity.
type Identity interface {
	isIdentity()
}

// AnonymousIdentity is a visitor without a token.
type AnonymousIdentity struct{}

// RegisteredIdentity is a signed-in customer with a login account.
type RegisteredIdentity struct {
	CustomerID uuid.UUID
	Email      string
}

// BillingOnlyIdentity is a returning customer known only by phone.
type BillingOnlyIdentity struct {
	CustomerID uuid.UUID
	Phone      string
}

func (AnonymousIdentity) isIdentity()   {}
func (RegisteredIdentity) isIdentity()  {}
func (BillingOnlyIdentity) isIdentity() {}
