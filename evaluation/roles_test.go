package evaluation

import (
	"strings"
	"testing"

	"github.com/shoplab-ai/shoplab/product"
)

func TestDefaultRolesCatalog(t *testing.T) {
	roles := DefaultRoles()

	wantNames := []string{"Cost Analysis", "Supplier Trust", "Sustainability", "Ingredient Safety"}
	if len(roles) != len(wantNames) {
		t.Fatalf("expected %d roles, got %d", len(wantNames), len(roles))
	}

	for i, role := range roles {
		if role.Name != wantNames[i] {
			t.Errorf("role %d = %q, want %q", i, role.Name, wantNames[i])
		}
		if role.Weight != 0.25 {
			t.Errorf("role %s weight = %v, want 0.25", role.Name, role.Weight)
		}
		if role.Emoji == "" || role.Description == "" || role.SystemPrompt == "" {
			t.Errorf("role %s missing identity fields", role.Name)
		}
		if role.BuildPrompt == nil {
			t.Errorf("role %s has no prompt builder", role.Name)
		}
	}
}

func TestSafetyPromptDemandsLookupWithoutIngredients(t *testing.T) {
	roles := DefaultRoles()
	safety := roles[len(roles)-1]
	if safety.Name != RoleIngredientSafety {
		t.Fatalf("last role = %q, want %q", safety.Name, RoleIngredientSafety)
	}

	attrs := product.Attributes{Name: "Choco Bar", Brand: "ChocoCo", Price: 3.5, Category: "Snacks"}
	prompt := safety.BuildPrompt(attrs)
	if !strings.Contains(prompt, "MUST use the lookup_product_ingredients tool") {
		t.Errorf("prompt should demand a lookup when ingredients are absent:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Not specified") {
		t.Errorf("prompt should mark ingredients as not specified:\n%s", prompt)
	}

	attrs.Ingredients = "cocoa, sugar"
	prompt = safety.BuildPrompt(attrs)
	if strings.Contains(prompt, "MUST use the lookup_product_ingredients tool") {
		t.Errorf("prompt should not demand a lookup when ingredients are present:\n%s", prompt)
	}
	if !strings.Contains(prompt, "cocoa, sugar") {
		t.Errorf("prompt should carry the supplied ingredients:\n%s", prompt)
	}
}

func TestPromptsCarryProductFields(t *testing.T) {
	rating := 4.2
	attrs := product.Attributes{
		Name:     "EcoClean Spray",
		Brand:    "GreenWorks",
		Price:    12.99,
		Category: "Cleaning",
		Reviews:  "Works well on glass.",
		Rating:   &rating,
	}

	for _, role := range DefaultRoles() {
		prompt := role.BuildPrompt(attrs)
		if !strings.Contains(prompt, "EcoClean Spray") {
			t.Errorf("%s prompt missing product name:\n%s", role.Name, prompt)
		}
	}
}

func TestTruncateToTokensShortTextUntouched(t *testing.T) {
	text := "short description"
	if got := truncateToTokens(text, 512); got != text {
		t.Errorf("short text should pass through, got %q", got)
	}
	if got := truncateToTokens("", 512); got != "" {
		t.Errorf("empty text should pass through, got %q", got)
	}
	if got := truncateToTokens(text, 0); got != text {
		t.Errorf("zero budget disables truncation, got %q", got)
	}
}

func TestTruncateToTokensCapsLongText(t *testing.T) {
	long := strings.Repeat("review text ", 2000)
	got := truncateToTokens(long, 8)
	if len(got) >= len(long) {
		t.Errorf("long text should be truncated, got %d bytes", len(got))
	}
}
