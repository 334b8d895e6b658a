package domain

import "fmt"

// CustomerDraft holds the contact form as the user typed it. Phone and CPF
// may still carry display masks here; they are re-stripped to digits at the
// payload boundary, never trusted.
type CustomerDraft struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	CPF        string `json:"cpf"`
	BirthDay   string `json:"birthDay"`
	BirthMonth string `json:"birthMonth"`
	BirthYear  string `json:"birthYear"`
	Gender     string `json:"gender"`
}

func (c CustomerDraft) FullName() string {
	return fmt.Sprintf("%s %s", c.FirstName, c.LastName)
}

// BirthDateISO composes the three editable sub-fields into YYYY-MM-DD.
func (c CustomerDraft) BirthDateISO() string {
	return fmt.Sprintf("%s-%s-%s", c.BirthYear, pad2(c.BirthMonth), pad2(c.BirthDay))
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ShippingDraft is the address group. A successful postal-code lookup
// overwrites Street/District/City/State; a failed lookup leaves them alone.
type ShippingDraft struct {
	PostalCode string `json:"cep"`
	Street     string `json:"address"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

// CartSelection is the product being bought. UnitPrice is in centavos and
// immutable for the session; Quantity is clamped by the pricing engine.
type CartSelection struct {
	ProductID    string `json:"productId"`
	ProductSlug  string `json:"productSlug"`
	ProductTitle string `json:"productTitle"`
	ProductImage string `json:"productImage,omitempty"`
	UnitPrice    int64  `json:"productPrice"`
	Quantity     int    `json:"qty"`
}
