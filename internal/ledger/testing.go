package ledger

import "github.com/shopspring/decimal"

// SeedToken creates an active token contract owned by party, returning its
// contract id. Test helper.
func SeedToken(l *InMemory, packageID, party string, schema SchemaKind, amount decimal.Decimal) string {
	template := TemplateID{PackageID: packageID, Module: ModuleBridge, Entity: TokenEntity(schema)}
	return l.Seed(template, TokenFields(TokenContract{
		Owner:  party,
		Issuer: party,
		Amount: amount,
		Schema: schema,
	}))
}
