package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactValueDecode(t *testing.T) {
	var contacts Contacts
	require.NoError(t, json.Unmarshal([]byte(`{"email":["a@b.com","c@d.com"],"phone":"555-1111","address":"123 St"}`), &contacts))

	assert.Equal(t, ContactMultiple, contacts.Email.Kind)
	assert.Equal(t, []string{"a@b.com", "c@d.com"}, contacts.Email.Values())
	assert.Equal(t, ContactSingle, contacts.Phone.Kind)
	assert.Equal(t, "555-1111", contacts.Phone.String())
	assert.Equal(t, "123 St", contacts.Address)

	encoded, err := json.Marshal(contacts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":["a@b.com","c@d.com"],"phone":"555-1111","address":"123 St"}`, string(encoded))
}

func TestContactValueNullAndInvalid(t *testing.T) {
	var value ContactValue
	require.NoError(t, json.Unmarshal([]byte(`null`), &value))
	assert.Equal(t, ContactEmpty, value.Kind)
	assert.Empty(t, value.String())

	require.Error(t, json.Unmarshal([]byte(`42`), &value))
}

func TestSearchQueryValidate(t *testing.T) {
	assert.NoError(t, SearchQuery{Goal: "violin tutor", CountryCode: "US"}.Validate())
	assert.NoError(t, SearchQuery{Goal: "violin tutor", CountryCode: "US", Location: "Austin", LocationBased: true}.Validate())

	err := SearchQuery{LocationBased: true}.Validate()
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, []string{"goal", "location", "country_code"}, validation.Fields)
	assert.Contains(t, validation.Error(), "goal, location, country_code")
}

func TestEnrichmentStatus(t *testing.T) {
	assert.False(t, EnrichmentNotStarted.Terminal())
	assert.False(t, EnrichmentPending.Terminal())
	assert.True(t, EnrichmentSucceeded.Terminal())
	assert.True(t, EnrichmentFailed.Terminal())

	encoded, err := json.Marshal(EnrichmentOutcome{Status: EnrichmentPending})
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"status":"pending"`)

	var decoded EnrichmentOutcome
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, EnrichmentPending, decoded.Status)

	var status EnrichmentStatus
	require.Error(t, status.UnmarshalText([]byte("done")))
}

func TestSearchErrorMessage(t *testing.T) {
	fault := &SearchError{Kind: SearchErrorServerFault, Message: "index offline", ID: "err-42"}
	assert.Equal(t, "search failed: index offline (error id: err-42)", fault.Error())
}
