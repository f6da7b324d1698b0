// Package fixtures provides shared test data constants for the
// ResumeFlow core test suite.
//
// Using common constants for identities and realm settings prevents
// magic strings in tests and keeps the packages consistent with each
// other.
package fixtures

// Standard identity values used in auth tests.
const (
	// TestSubject is the default subject claim for test identities.
	TestSubject = "user-abc-123"

	// TestUsername is the default preferred_username claim.
	TestUsername = "jdoe"

	// TestEmail is the default email claim.
	TestEmail = "jdoe@example.com"

	// TestIssuer is the default issuer for test tokens.
	TestIssuer = "http://localhost:8080/realms/resume-flow"

	// TestAudience is the default audience for test tokens.
	TestAudience = "resume-flow-api"

	// TestServiceName is the default caller service name used in
	// propagation tests.
	TestServiceName = "resume-service"
)

// Standard realm settings used in identity-provider client tests.
const (
	// TestRealm is the realm name used by test fixtures.
	TestRealm = "resume-flow"

	// TestClientID is the confidential client the admin API tests
	// authenticate as.
	TestClientID = "resume-flow-api"

	// TestClientSecret is a deliberately weak secret suitable only for
	// unit tests.
	TestClientSecret = "test-client-secret"

	// TestUserID is the default identity-provider user ID for admin
	// API tests.
	TestUserID = "11111111-2222-3333-4444-555555555555"
)

// Standard configuration values used in config loader tests.
const (
	// TestEnvPrefix is the default environment variable prefix for
	// config tests.
	TestEnvPrefix = "TESTAPP"

	// TestConfigYAML is a minimal valid YAML configuration for tests.
	TestConfigYAML = `host: localhost
port: 8080
database: testdb
`

	// TestConfigJSON is a minimal valid JSON configuration for tests.
	TestConfigJSON = `{
  "host": "localhost",
  "port": 8080,
  "database": "testdb"
}`
)
