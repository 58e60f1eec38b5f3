package e2e

import (
	"strconv"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite drives the running server over HTTP.
type E2ETestSuite struct {
	suite.Suite
	pw  *playwright.Playwright
	api playwright.APIRequestContext
}

type session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		Email                string `json:"email"`
		HasSecurityQuestions bool   `json:"has_security_questions"`
	} `json:"user"`
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw

	api, err := pw.Request.NewContext(playwright.APIRequestNewContextOptions{
		BaseURL: playwright.String(appURL),
	})
	require.NoError(suite.T(), err, "could not create request context")
	suite.api = api
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.api != nil {
		suite.api.Dispose()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

func (suite *E2ETestSuite) bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (suite *E2ETestSuite) login(email, password string) string {
	resp, err := suite.api.Post("/auth/login", playwright.APIRequestContextPostOptions{
		Form: map[string]any{"username": email, "password": password},
	})
	require.NoError(suite.T(), err, "login request failed")
	require.Equal(suite.T(), 200, resp.Status(), "login rejected")

	var s session
	require.NoError(suite.T(), resp.JSON(&s))
	require.Equal(suite.T(), "bearer", s.TokenType)
	return s.AccessToken
}

func (suite *E2ETestSuite) TestAdminBootstrapLogin() {
	token := suite.login(adminEmail, adminPassword)

	resp, err := suite.api.Get("/auth/me", playwright.APIRequestContextGetOptions{Headers: suite.bearer(token)})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 200, resp.Status())

	var me struct {
		Email string `json:"email"`
	}
	require.NoError(suite.T(), resp.JSON(&me))
	suite.Equal(adminEmail, me.Email)
}

func (suite *E2ETestSuite) TestCompleteUserFlow() {
	// Signup
	resp, err := suite.api.Post("/auth/signup", playwright.APIRequestContextPostOptions{
		Data: map[string]any{"email": "Driver@Fleet.test", "password": "Secret1!", "confirm_password": "Secret1!"},
	})
	require.NoError(suite.T(), err, "signup request failed")
	require.Equal(suite.T(), 201, resp.Status())

	var s session
	require.NoError(suite.T(), resp.JSON(&s))
	suite.Equal("driver@fleet.test", s.User.Email)
	suite.False(s.User.HasSecurityQuestions)

	// Login with the form the OAuth2 password flow uses
	token := suite.login("driver@fleet.test", "Secret1!")
	auth := suite.bearer(token)

	// Reference data
	resp, err = suite.api.Post("/api/v1/trucks/", playwright.APIRequestContextPostOptions{
		Headers: auth,
		Data:    map[string]any{"number": "T-42"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 201, resp.Status())
	var truck struct {
		ID int64 `json:"id"`
	}
	require.NoError(suite.T(), resp.JSON(&truck))

	// Create expense
	resp, err = suite.api.Post("/api/v1/expenses/", playwright.APIRequestContextPostOptions{
		Headers: auth,
		Data: map[string]any{
			"company":     "SWS",
			"category":    "fuel-diesel",
			"date":        "2024-06-03",
			"price":       412.5,
			"gallons":     98.2,
			"description": "Lunch stop fuel",
			"truck_id":    truck.ID,
		},
	})
	require.NoError(suite.T(), err, "failed to create expense")
	require.Equal(suite.T(), 201, resp.Status())

	// Verify in list
	resp, err = suite.api.Get("/api/v1/expenses/?keyword=lunch", playwright.APIRequestContextGetOptions{Headers: auth})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 200, resp.Status())

	var expenses []struct {
		Price       float64 `json:"price"`
		Description string  `json:"description"`
		Truck       struct {
			Number string `json:"number"`
		} `json:"truck"`
	}
	require.NoError(suite.T(), resp.JSON(&expenses))
	require.Len(suite.T(), expenses, 1, "expense item count mismatch")
	suite.Equal("Lunch stop fuel", expenses[0].Description)
	suite.Equal(412.5, expenses[0].Price)
	suite.Equal("T-42", expenses[0].Truck.Number)

	// Monthly trend reflects it
	resp, err = suite.api.Get("/api/v1/reports/monthly-trend?company=SWS&year=2024", playwright.APIRequestContextGetOptions{Headers: auth})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 200, resp.Status())
	var trend []struct {
		Month int     `json:"month"`
		Total float64 `json:"total"`
	}
	require.NoError(suite.T(), resp.JSON(&trend))
	require.Len(suite.T(), trend, 12)
	suite.Equal(412.5, trend[5].Total)

	// Referenced trucks cannot be deleted
	resp, err = suite.api.Delete("/api/v1/trucks/"+strconv.FormatInt(truck.ID, 10), playwright.APIRequestContextDeleteOptions{Headers: auth})
	require.NoError(suite.T(), err)
	suite.Equal(400, resp.Status())
}

func (suite *E2ETestSuite) TestUnauthenticatedRequestsAreRejected() {
	resp, err := suite.api.Get("/api/v1/expenses/")
	require.NoError(suite.T(), err)
	suite.Equal(401, resp.Status())
	suite.Equal("Bearer", resp.Headers()["www-authenticate"])
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
