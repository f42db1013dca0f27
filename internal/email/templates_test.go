package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
)

func TestRendererCoversEveryTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	keys := []model.TemplateKey{
		model.TemplateDoctorApprovalRequested,
		model.TemplateClinicApprovalRequested,
		model.TemplateClinicDocumentsUpdated,
		model.TemplateDoctorApproved,
		model.TemplateClinicApproved,
		model.TemplateDoctorRejected,
		model.TemplateClinicRejected,
		model.TemplateClinicRejectedDoctor,
		model.TemplateClinicApprovedDoctor,
		model.TemplateDoctorWelcome,
	}
	for _, key := range keys {
		subject, body, err := r.Render(key, nil)
		require.NoError(t, err, key)
		assert.NotEmpty(t, subject, key)
		assert.NotEmpty(t, body, key)
		assert.NotContains(t, subject+body, "<no value>", key)
	}
}

func TestRenderSubstitutesPayload(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	subject, body, err := r.Render(model.TemplateClinicRejectedDoctor, map[string]interface{}{
		"name":        "Dr. Grey",
		"clinic_name": "Riverside Clinic",
		"reason":      "license expired",
	})
	require.NoError(t, err)
	assert.Equal(t, "Riverside Clinic did not approve your profile", subject)
	assert.Contains(t, body, "Hello Dr. Grey")
	assert.Contains(t, body, "Reason: license expired")
}

func TestRenderRenewalDateIsOptional(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, body, err := r.Render(model.TemplateClinicApprovedDoctor, map[string]interface{}{"renewal_date": "2027-01-31"})
	require.NoError(t, err)
	assert.Contains(t, body, "Next review: 2027-01-31")

	_, body, err = r.Render(model.TemplateClinicApprovedDoctor, map[string]interface{}{})
	require.NoError(t, err)
	assert.NotContains(t, body, "Next review")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, _, err = r.Render(model.TemplateKey("missing"), nil)
	assert.Error(t, err)
}
