package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"biosculpture/internal/domain"
	"biosculpture/internal/geocode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type salonBody struct {
	Salon    domain.Salon `json:"salon"`
	Geocoded bool         `json:"geocoded"`
}

func TestSalonSubmissionAndProximitySearch(t *testing.T) {
	e := newEnv(t)
	adminTok := e.token(e.user("a@example.com", domain.RoleAdmin))
	owner := e.user("o@example.com", domain.RoleUser)
	tok := e.token(owner)
	e.geo.places["Rua Augusta 1, Lisbon, Portugal"] = geocode.Location{Latitude: 38.7100, Longitude: -9.1370}
	e.geo.places["Avenida da Liberdade 100, Lisbon, Portugal"] = geocode.Location{Latitude: 38.7200, Longitude: -9.1450}

	w := e.do("POST", "/api/salons", SalonRequest{Name: strPtr("Augusta Nails"), Address: strPtr("Rua Augusta 1"),
		City: strPtr("Lisbon"), Country: strPtr("Portugal")}, tok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	augusta := decode[salonBody](t, w)
	assert.True(t, augusta.Geocoded)
	assert.Equal(t, domain.StatusPending, augusta.Salon.Status)

	w = e.do("POST", "/api/salons", SalonRequest{Name: strPtr("Liberdade Studio"), Address: strPtr("Avenida da Liberdade 100"),
		City: strPtr("Lisbon"), Country: strPtr("Portugal")}, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	liberdade := decode[salonBody](t, w).Salon

	// Unknown addresses are saved without coordinates
	w = e.do("POST", "/api/salons", SalonRequest{Name: strPtr("Porto Gels"), Address: strPtr("Rua Nowhere 9"),
		City: strPtr("Porto"), Country: strPtr("Portugal")}, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	porto := decode[salonBody](t, w)
	assert.False(t, porto.Geocoded)
	assert.Nil(t, porto.Salon.Latitude)

	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/salons", SalonRequest{Name: strPtr("No address")}, tok).Code)

	// Pending salons are not listed
	w = e.do("GET", "/api/salons?lat=38.71&lng=-9.137", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["total"])

	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", "/api/admin/salons/"+itoa(porto.Salon.ID)+"/status", StatusRequest{Status: "rejected"}, adminTok).Code)
	for _, id := range []uint{augusta.Salon.ID, liberdade.ID, porto.Salon.ID} {
		w = e.do("PATCH", "/api/admin/salons/"+itoa(id)+"/status", StatusRequest{Status: "approved"}, adminTok)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, int64(3), e.notifications(owner.ID))

	w = e.do("GET", "/api/salons?lat=38.7101&lng=-9.1371&radius_km=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	nearby := decode[struct {
		Salons []nearbySalon `json:"salons"`
		Total  int64         `json:"total"`
	}](t, w)
	require.Equal(t, int64(2), nearby.Total)
	assert.Equal(t, "Augusta Nails", nearby.Salons[0].Name)
	assert.Equal(t, "Liberdade Studio", nearby.Salons[1].Name)
	assert.Less(t, nearby.Salons[0].DistanceKm, nearby.Salons[1].DistanceKm)

	w = e.do("GET", "/api/salons?lat=38.7101&lng=-9.1371&radius_km=0.5", nil, "")
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])
	assert.Equal(t, http.StatusBadRequest, e.do("GET", "/api/salons?lat=95&lng=0", nil, "").Code)

	w = e.do("GET", "/api/salons?city=porto", nil, "")
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])

	// Retrying the lookup after fixing the address table
	assert.Equal(t, http.StatusUnprocessableEntity, e.do("POST", "/api/admin/salons/"+itoa(porto.Salon.ID)+"/geocode", nil, adminTok).Code)
	e.geo.places["Rua Nowhere 9, Porto, Portugal"] = geocode.Location{Latitude: 41.15, Longitude: -8.61, FormattedAddress: "Rua Nowhere 9, Porto"}
	w = e.do("POST", "/api/admin/salons/"+itoa(porto.Salon.ID)+"/geocode", nil, adminTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, decode[salonBody](t, w).Salon.Latitude)

	// Moving a salon sends it back to review
	w = e.do("PATCH", "/api/salons/"+itoa(augusta.Salon.ID), SalonRequest{Address: strPtr("Avenida da Liberdade 100")}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[salonBody](t, w).Salon
	assert.Equal(t, domain.StatusPending, moved.Status)
	require.NotNil(t, moved.Latitude)
	assert.InDelta(t, 38.72, *moved.Latitude, 0.0001)

	other := e.token(e.user("x@example.com", domain.RoleUser))
	assert.Equal(t, http.StatusNotFound, e.do("PATCH", "/api/salons/"+itoa(liberdade.ID), SalonRequest{Name: strPtr("Mine")}, other).Code)
}

func TestSalonSearchAcrossAntimeridian(t *testing.T) {
	e := newEnv(t)
	owner := e.user("o@example.com", domain.RoleUser)
	salon := func(name string, lat, lng float64) {
		require.NoError(t, e.db.Create(&domain.Salon{Name: name, Address: "Main Rd", City: "Taveuni", Country: "Fiji",
			Latitude: &lat, Longitude: &lng, Status: domain.StatusApproved, SubmittedByID: owner.ID}).Error)
	}
	salon("East Side", -16.80, 179.95)
	salon("West Side", -16.80, -179.95)
	salon("Suva", -18.14, 178.44)

	w := e.do("GET", "/api/salons?lat=-16.8&lng=179.99&radius_km=20", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	nearby := decode[struct {
		Salons []nearbySalon `json:"salons"`
	}](t, w).Salons
	require.Len(t, nearby, 2)
	assert.Equal(t, "East Side", nearby[0].Name)
	assert.Equal(t, "West Side", nearby[1].Name)
}

func (e *testEnv) upload(token, name string, content []byte, folder string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(e.t, err)
	_, err = part.Write(content)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.WriteField("folder", folder))
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest("POST", "/api/admin/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func TestFileUploadSniffsContent(t *testing.T) {
	e := newEnv(t)
	editorTok := e.token(e.user("e@example.com", domain.RoleEditor))

	// The extension is ignored; content decides
	w := e.upload(editorTok, "notes.png", []byte("just some text"), "misc")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, w.Body.String())

	w = e.upload(editorTok, "swatch.txt", pngBytes, "Spring Colours")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	asset := decode[struct {
		File domain.FileAsset `json:"file"`
	}](t, w).File
	assert.Equal(t, "image/png", asset.MimeType)
	assert.Equal(t, "spring-colours", asset.Folder)
	assert.True(t, strings.HasSuffix(asset.StoredName, ".png"))
	assert.Equal(t, "http://localhost:8080/uploads/"+asset.StoredName, asset.URL)
	_, err := os.Stat(filepath.Join(e.cfg.UploadDir, asset.StoredName))
	require.NoError(t, err)

	w = e.do("GET", "/api/gallery", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])

	w = e.do("GET", "/uploads/"+asset.StoredName, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusOK, e.do("DELETE", "/api/admin/files/"+itoa(asset.ID), nil, editorTok).Code)
	_, err = os.Stat(filepath.Join(e.cfg.UploadDir, asset.StoredName))
	assert.True(t, os.IsNotExist(err))
}

func TestFileUploadRejectsSVG(t *testing.T) {
	e := newEnv(t)
	editorTok := e.token(e.user("e@example.com", domain.RoleEditor))
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`)

	w := e.upload(editorTok, "logo.png", svg, "brand")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, w.Body.String())
	entries, err := os.ReadDir(e.cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	w = e.upload(editorTok, "swatch.png", pngBytes, "brand")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	asset := decode[struct {
		File domain.FileAsset `json:"file"`
	}](t, w).File
	w = e.do("GET", "/uploads/"+asset.StoredName, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "sandbox")
}

func TestFileUploadTooLarge(t *testing.T) {
	e := newEnv(t)
	e.cfg.UploadMaxBytes = 32
	editorTok := e.token(e.user("e@example.com", domain.RoleEditor))
	w := e.upload(editorTok, "big.png", append(pngBytes, make([]byte, 64)...), "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCertificationIssueAndVerify(t *testing.T) {
	e := newEnv(t)
	adminTok := e.token(e.user("a@example.com", domain.RoleAdmin))
	tech := e.user("tech@example.com", domain.RoleUser)

	missing := uint(999)
	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/admin/certifications", CertificationRequest{UserID: &missing, Title: strPtr("Gel Technician")}, adminTok).Code)

	expires := time.Now().Add(365 * 24 * time.Hour)
	w := e.do("POST", "/api/admin/certifications", CertificationRequest{UserID: &tech.ID, Title: strPtr("Gel Technician"),
		Level: strPtr("Advanced"), ExpiresAt: &expires}, adminTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cert := decode[struct {
		Certification domain.Certification `json:"certification"`
	}](t, w).Certification
	assert.True(t, strings.HasPrefix(cert.CertificateNumber, "BSC-"))
	assert.Equal(t, int64(1), e.notifications(tech.ID))

	w = e.do("GET", "/api/certifications/verify/"+strings.ToLower(cert.CertificateNumber), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, tech.Name, body["holder"])

	require.Equal(t, http.StatusOK, e.do("PATCH", "/api/admin/certifications/"+itoa(cert.ID), CertificationRequest{Status: strPtr("revoked")}, adminTok).Code)
	w = e.do("GET", "/api/certifications/verify/"+cert.CertificateNumber, nil, "")
	assert.Equal(t, false, decode[map[string]any](t, w)["valid"])

	w = e.do("GET", "/api/certifications", nil, e.token(tech))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/certifications/verify/BSC-NOPE", nil, "").Code)
}

func TestSocialPostPlanning(t *testing.T) {
	e := newEnv(t)
	editorTok := e.token(e.user("e@example.com", domain.RoleEditor))
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(48 * time.Hour)

	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/admin/social-posts", SocialPostRequest{Title: strPtr("Launch"),
		Platform: strPtr("myspace")}, editorTok).Code)
	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/admin/social-posts", SocialPostRequest{Title: strPtr("Launch"),
		Platform: strPtr("instagram"), Status: strPtr("scheduled"), ScheduledAt: &past}, editorTok).Code)

	w := e.do("POST", "/api/admin/social-posts", SocialPostRequest{Title: strPtr("Launch"), Platform: strPtr("instagram"),
		Hashtags: []string{"#nails", "biosculpture"}, Status: strPtr("scheduled"), ScheduledAt: &future}, editorTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := decode[struct {
		Post domain.SocialMediaPost `json:"post"`
	}](t, w).Post
	assert.Equal(t, []string{"nails", "biosculpture"}, post.Hashtags)

	w = e.do("POST", "/api/admin/social-posts/"+itoa(post.ID)+"/posted", nil, editorTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	posted := decode[struct {
		Post domain.SocialMediaPost `json:"post"`
	}](t, w).Post
	assert.Equal(t, domain.PostPosted, posted.Status)
	assert.NotNil(t, posted.PostedAt)
	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/admin/social-posts/"+itoa(post.ID)+"/posted", nil, editorTok).Code)

	w = e.do("GET", "/api/admin/social-posts?platform=instagram", nil, editorTok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])

	// A date-only end covers the whole day
	w = e.do("GET", "/api/admin/social-posts?to="+future.UTC().Format("2006-01-02"), nil, editorTok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])
	w = e.do("GET", "/api/admin/social-posts?to="+time.Now().UTC().Format("2006-01-02"), nil, editorTok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["total"])
}
