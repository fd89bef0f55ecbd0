package money

import (
	"encoding/json"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"1000", FromCents(100000), false},
		{"99.99", FromCents(9999), false},
		{"0.005", FromCents(1), false},
		{"-0.005", FromCents(-1), false},
		{"12.344", FromCents(1234), false},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoney_String(t *testing.T) {
	if got := FromCents(80000).String(); got != "800.00" {
		t.Errorf("String() = %s, want 800.00", got)
	}
	if got := FromCents(-5).String(); got != "-0.05" {
		t.Errorf("String() = %s, want -0.05", got)
	}
}

func TestMoney_ApplyPercent(t *testing.T) {
	tests := []struct {
		name    string
		amount  Money
		percent Percent
		want    Money
	}{
		{"eighty percent of 1000", MustParse("1000"), PercentFromInt(80), MustParse("800.00")},
		{"full refund", MustParse("123.45"), PercentFromInt(100), MustParse("123.45")},
		{"zero", MustParse("123.45"), 0, 0},
		{"rounds half up", MustParse("0.05"), PercentFromInt(50), MustParse("0.03")},
		{"fractional percent", MustParse("200"), Percent(3350), MustParse("67.00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.ApplyPercent(tt.percent); got != tt.want {
				t.Errorf("ApplyPercent() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMoney_ApplyRate(t *testing.T) {
	rate, err := ParseRate("0.0825")
	if err != nil {
		t.Fatalf("ParseRate() error = %v", err)
	}
	if got := MustParse("100").ApplyRate(rate); got != MustParse("8.25") {
		t.Errorf("ApplyRate() = %s, want 8.25", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio(MustParse("150"), MustParse("100")); got != Rate(15000) {
		t.Errorf("Ratio() = %s, want 1.5000", got)
	}
	if got := Ratio(MustParse("150"), 0); got != RateOne {
		t.Errorf("Ratio() with zero denominator = %s, want 1.0000", got)
	}
	if got := Ratio(MustParse("1"), MustParse("3")); got.String() != "0.3333" {
		t.Errorf("Ratio() = %s, want 0.3333", got)
	}
}

func TestMoney_JSON(t *testing.T) {
	type payload struct {
		Amount Money `json:"amount"`
	}

	data, err := json.Marshal(payload{Amount: MustParse("42.10")})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"amount":"42.10"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var decoded payload
	if err := json.Unmarshal([]byte(`{"amount":19.5}`), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Amount != MustParse("19.50") {
		t.Errorf("Unmarshal() = %s, want 19.50", decoded.Amount)
	}
}

func TestFixedPoint_BSONDecimal(t *testing.T) {
	type doc struct {
		Price   Money   `bson:"price"`
		Percent Percent `bson:"percent"`
		Rate    Rate    `bson:"rate"`
	}

	in := doc{Price: MustParse("1234.56"), Percent: PercentFromInt(80), Rate: Rate(12500)}
	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("bson.Marshal() error = %v", err)
	}

	if got := bson.Raw(raw).Lookup("price").Type; got != bsontype.Decimal128 {
		t.Errorf("price stored as %s, want decimal128", got)
	}

	var out doc
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("bson.Unmarshal() error = %v", err)
	}
	if out != in {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
}
