package middleware

import "testing"

// Every request path must land on a fixed route template so the duration
// histogram's label set stays bounded no matter what clients send.
func TestMetricsPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/tasks", "/api/tasks"},
		{"/api/tasks/", "/api/tasks"},
		{"/api/tasks/123", "/api/tasks/{id}"},
		{"/api/tasks/123/accept", "/api/tasks/{id}/accept"},
		{"/api/tasks/123/mark-paid", "/api/tasks/{id}/mark-paid"},
		{"/api/tasks/123/zzz", "other"},
		{"/api/tasks/1/2/3", "other"},
		{"/api/escrow/7", "/api/escrow/{id}"},
		{"/api/escrow/7/funding-qr", "/api/escrow/{id}/funding-qr"},
		{"/api/escrow/7/other", "other"},
		{"/api/health", "/api/health"},
		{"/metrics", "/metrics"},
		{"/favicon.ico", "other"},
		{"/", "other"},
	}
	for _, tc := range cases {
		if got := metricsPath(tc.path); got != tc.want {
			t.Fatalf("metricsPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
