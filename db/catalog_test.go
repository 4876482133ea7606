package db

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCatalogLookups(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	_, err := testDB.Product(testProductID)
	c.Assert(err, qt.Equals, ErrNotFound)

	product := &Product{
		ID:                   testProductID,
		Name:                 "Canvas Print 8x10",
		Price:                2499,
		Currency:             "usd",
		FulfillmentVariantID: testVariantID,
		Active:               true,
	}
	c.Assert(testDB.SetProduct(product), qt.IsNil)
	stored, err := testDB.Product(testProductID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Name, qt.Equals, product.Name)
	c.Assert(int64(stored.Price), qt.Equals, int64(2499))

	memory := &Memory{ID: testMemoryID, UserID: testUserID, Title: "Summer 2024", ImageURL: "https://cdn.example.com/m.jpg"}
	c.Assert(testDB.SetMemory(memory), qt.IsNil)
	mem, err := testDB.Memory(testMemoryID)
	c.Assert(err, qt.IsNil)
	c.Assert(mem.Title, qt.Equals, "Summer 2024")

	user := &User{ID: testUserID, AuthID: "auth_1", Email: testUserEmail, StripeCustomerID: testCustomerID}
	c.Assert(testDB.SetUser(user), qt.IsNil)

	byAuth, err := testDB.UserByAuthID("auth_1")
	c.Assert(err, qt.IsNil)
	c.Assert(byAuth.ID, qt.Equals, testUserID)

	byCustomer, err := testDB.UserByStripeCustomer(testCustomerID)
	c.Assert(err, qt.IsNil)
	c.Assert(byCustomer.ID, qt.Equals, testUserID)

	_, err = testDB.UserByStripeCustomer("cus_missing")
	c.Assert(err, qt.Equals, ErrNotFound)
}

func TestPackages(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	pkg := &Package{
		ID:                   testPackageID,
		Name:                 "Premium",
		MonthlyPrice:         999,
		YearlyPrice:          9900,
		StripeMonthlyPriceID: "price_m",
		StripeYearlyPriceID:  "price_y",
	}
	c.Assert(testDB.SetPackage(pkg), qt.IsNil)

	stored, err := testDB.GetPackage(testPackageID)
	c.Assert(err, qt.IsNil)
	c.Assert(int64(stored.Price(BillingCycleMonthly)), qt.Equals, int64(999))
	c.Assert(int64(stored.Price(BillingCycleYearly)), qt.Equals, int64(9900))
	c.Assert(stored.StripePriceID(BillingCycleYearly), qt.Equals, "price_y")

	all, err := testDB.Packages()
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 1)
}

func TestAuditEntries(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	entry := &AuditEntry{AdminID: "admin_1", Action: "cancel_order", OrderID: "o1", Reason: "test"}
	c.Assert(testDB.AddAuditEntry(entry), qt.IsNil)
	c.Assert(entry.ID, qt.Not(qt.Equals), "")

	entries, err := testDB.AuditEntriesByOrder("o1")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Action, qt.Equals, "cancel_order")

	c.Assert(testDB.AddAuditEntry(&AuditEntry{}), qt.Equals, ErrInvalidData)
}
