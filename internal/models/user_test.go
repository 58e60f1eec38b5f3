package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasSecurityQuestions(t *testing.T) {
	u := User{Email: "a@example.com"}
	assert.False(t, u.HasSecurityQuestions())

	u.SecurityQuestions[0] = SecurityQuestion{Question: "Favourite color?", AnswerHash: "h1"}
	u.SecurityQuestions[1] = SecurityQuestion{Question: "First pet?", AnswerHash: "h2"}
	assert.False(t, u.HasSecurityQuestions(), "two configured questions are not enough")

	u.SecurityQuestions[2] = SecurityQuestion{Question: "Birth city?"}
	assert.False(t, u.HasSecurityQuestions(), "question without answer hash is not configured")

	u.SecurityQuestions[2].AnswerHash = "h3"
	assert.True(t, u.HasSecurityQuestions())
}

func TestPublicOmitsSecrets(t *testing.T) {
	u := User{ID: 7, Email: "a@example.com", PasswordHash: "$2a$secret", IsActive: true, CreatedAt: time.Now()}

	data, err := json.Marshal(u.Public())
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), `"has_security_questions":false`)
	assert.Contains(t, string(data), `"email":"a@example.com"`)
}

func TestReferenceJSONUsesKindField(t *testing.T) {
	truck, err := json.Marshal(Reference{ID: 1, Kind: KindTruck, Identifier: "T-100"})
	require.NoError(t, err)
	assert.Contains(t, string(truck), `"number":"T-100"`)

	unit, err := json.Marshal(Reference{ID: 2, Kind: KindBusinessUnit, Identifier: "North"})
	require.NoError(t, err)
	assert.Contains(t, string(unit), `"name":"North"`)
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, CompanySWS.Valid())
	assert.False(t, Company("Acme").Valid())
	assert.True(t, CategoryFuelDiesel.Valid())
	assert.False(t, Category("fuel").Valid())
}
