// Package mocks holds gomock doubles for the service ports.
//
// Regenerate after an interface change with:
//
//	go generate ./internal/mocks
package mocks

// MockJobStore: Put, Get, AdvanceStatus, ListByStatus
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_store_mock.go media-job-service/internal/service JobStore

// MockUploadAuthority: IssueUploadGrant
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=upload_authority_mock.go media-job-service/internal/service UploadAuthority

// MockPublisher: Publish, Close
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=publisher_mock.go media-job-service/internal/events Publisher
