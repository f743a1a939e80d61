package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

func TestNewProductInvariants(t *testing.T) {
	tests := []struct {
		name    string
		stock   int
		price   string
		wantErr error
	}{
		{"valid", 3, "10.50", nil},
		{"zero price", 1, "0", nil},
		{"negative price", 1, "-0.01", ErrNegativePrice},
		{"negative stock", -1, "1", ErrNegativeStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProduct("Cable", tt.stock, decimal.RequireFromString(tt.price))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && p.ID != 0 {
				t.Fatalf("new product has id %d before insert", p.ID)
			}
		})
	}
}

func TestApplyKeepsID(t *testing.T) {
	p := &Product{ID: 9, Name: "Old", Stock: 1, Price: decimal.NewFromInt(1)}

	if err := p.Apply(ProductInput{Name: "New", Stock: 4, Price: decimal.RequireFromString("2.5")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	v := p.ToView()
	if v.ID != 9 || v.Name != "New" || v.Stock != 4 || !v.Price.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("view = %+v", v)
	}

	if err := p.Apply(ProductInput{Name: "New", Stock: 1, Price: decimal.NewFromInt(-1)}); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("Apply negative price err = %v", err)
	}
}

func TestProductInputValidate(t *testing.T) {
	tests := []struct {
		name      string
		in        ProductInput
		wantField string
	}{
		{"valid", ProductInput{Name: "Mouse", Stock: 0, Price: decimal.Zero}, ""},
		{"max length", ProductInput{Name: strings.Repeat("é", MaxNameLength), Price: decimal.NewFromInt(1)}, ""},
		{"empty name", ProductInput{Name: "", Price: decimal.NewFromInt(1)}, "name"},
		{"blank name", ProductInput{Name: "   ", Price: decimal.NewFromInt(1)}, "name"},
		{"name too long", ProductInput{Name: strings.Repeat("a", MaxNameLength+1), Price: decimal.NewFromInt(1)}, "name"},
		{"negative stock", ProductInput{Name: "Mouse", Stock: -1, Price: decimal.NewFromInt(1)}, "stock"},
		{"negative price", ProductInput{Name: "Mouse", Price: decimal.RequireFromString("-0.01")}, "price"},
		{"max stock", ProductInput{Name: "Mouse", Stock: MaxStock, Price: decimal.NewFromInt(1)}, ""},
		{"stock above int32", ProductInput{Name: "Mouse", Stock: MaxStock + 1, Price: decimal.NewFromInt(1)}, "stock"},
		{"two decimals", ProductInput{Name: "Mouse", Price: decimal.RequireFromString("0.01")}, ""},
		{"trailing zeros", ProductInput{Name: "Mouse", Price: decimal.RequireFromString("1.500")}, ""},
		{"three decimals", ProductInput{Name: "Mouse", Price: decimal.RequireFromString("0.005")}, "price"},
		{"largest price", ProductInput{Name: "Mouse", Price: decimal.RequireFromString("9999999999999999.99")}, ""},
		{"price too large", ProductInput{Name: "Mouse", Price: decimal.RequireFromString("10000000000000000")}, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("err = %v, want validation.Errors", err)
			}
			if _, ok := verrs[tt.wantField]; !ok || len(verrs) != 1 {
				t.Fatalf("errors = %v, want only %s", verrs, tt.wantField)
			}
		})
	}
}

func TestListQuerySort(t *testing.T) {
	tests := []struct {
		q        ListQuery
		wantCol  string
		wantDesc bool
	}{
		{ListQuery{}, SortByID, false},
		{ListQuery{Direction: "desc"}, SortByID, false},
		{ListQuery{SortBy: "bogus", Direction: "desc"}, SortByID, false},
		{ListQuery{SortBy: "name"}, SortByName, false},
		{ListQuery{SortBy: "Stock", Direction: "DESC"}, SortByStock, true},
		{ListQuery{SortBy: "PRICE", Direction: "Desc"}, SortByPrice, true},
		{ListQuery{SortBy: "price", Direction: "descending"}, SortByPrice, false},
	}

	for _, tt := range tests {
		if got := tt.q.SortColumn(); got != tt.wantCol {
			t.Errorf("%+v SortColumn() = %s, want %s", tt.q, got, tt.wantCol)
		}
		if got := tt.q.Descending(); got != tt.wantDesc {
			t.Errorf("%+v Descending() = %v, want %v", tt.q, got, tt.wantDesc)
		}
	}
}

func TestProductViewPriceIsJSONNumber(t *testing.T) {
	v := ProductView{ID: 1, Name: "Mouse", Stock: 2, Price: decimal.RequireFromString("10.50")}

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := `{"id":1,"name":"Mouse","stock":2,"price":10.5}`; string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}

	var back ProductView
	if err := json.Unmarshal([]byte(`{"id":1,"name":"Mouse","stock":2,"price":"10.50"}`), &back); err != nil {
		t.Fatalf("Unmarshal quoted price: %v", err)
	}
	if !back.Price.Equal(v.Price) {
		t.Fatalf("price = %s, want %s", back.Price, v.Price)
	}
}
