package core

import "testing"

func TestClassifyOption(t *testing.T) {
	cases := map[string]Category{
		"Firebase":             CategoryDatabase,
		"Supabase":             CategoryDatabase,
		"MongoDB":              CategoryDatabase,
		"Firebase Auth":        CategoryAuth,
		"Django":               CategoryWebFramework,
		"Go":                   CategoryLanguage,
		"Rust":                 CategoryLanguage,
		"React":                CategoryFrontend,
		"Vercel":               CategoryHosting,
		"Google Cloud Storage": CategoryStorage,
		"Kafka":                CategoryMessaging,
		"Stripe":               CategoryPayment,
		"Terraform":            CategoryInfrastructure,
		"Option A":             CategoryOther,
		"":                     CategoryOther,
	}
	for name, want := range cases {
		if got := ClassifyOption(name); got != want {
			t.Fatalf("ClassifyOption(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestClassifyRequiresAgreement(t *testing.T) {
	if got := Classify("Firebase", "Supabase"); got != CategoryDatabase {
		t.Fatalf("expected database, got %s", got)
	}
	if got := Classify("Postgres", "Vercel"); got != CategoryOther {
		t.Fatalf("expected other on disagreement, got %s", got)
	}
}

func TestStarterStepsFallsBackToOther(t *testing.T) {
	if len(StarterSteps(CategoryDatabase)) != 3 {
		t.Fatalf("expected three database steps")
	}
	if got := StarterSteps(CategoryOther); len(got) != 3 || got[0] != otherStarter[0] {
		t.Fatalf("expected generic steps, got %v", got)
	}
	if len(Categories()) != 10 {
		t.Fatalf("expected ten categories in the table")
	}
}
