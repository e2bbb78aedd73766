package clinic

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klinicq/queue-platform/pkg/logging"
	"github.com/redis/go-redis/v9"
)

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  kq-ab12 "); got != "KQ-AB12" {
		t.Fatalf("NormalizeCode = %q", got)
	}
}

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"KQ-AB12", true},
		{"KQ-9999", true},
		{"kq-ab12", false},
		{"KQ-AB1", false},
		{"KQ-AB123", false},
		{"QK-AB12", false},
		{"KQAB12", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidCode(tt.code); got != tt.want {
			t.Fatalf("ValidCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestFindCodeInText(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"hi, my clinic is kq-ab12 thanks", "KQ-AB12", true},
		{"Visit KQ-ZZ99.", "KQ-ZZ99", true},
		{"KQ-AB12", "KQ-AB12", true},
		{"code KQ-AB123 is too long", "", false},
		{"no code here", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := FindCodeInText(tt.text)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("FindCodeInText(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func mustMarshalCode(t *testing.T, rec codeRecord) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal code record: %v", err)
	}
	return item
}

func newTestDirectory(t *testing.T, mock *mockDynamo) (*Directory, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewDirectory(newTestStore(mock), rdb, logging.Default()), rdb
}

func TestDirectoryResolveMalformedSkipsLookup(t *testing.T) {
	mock := &mockDynamo{}
	dir, _ := newTestDirectory(t, mock)

	_, err := dir.Resolve(context.Background(), "front desk")
	if !errors.Is(err, ErrMalformedCode) {
		t.Fatalf("expected ErrMalformedCode, got %v", err)
	}
	if len(mock.getInputs) != 0 {
		t.Fatalf("malformed input must not reach the store, got %d lookups", len(mock.getInputs))
	}
}

func TestDirectoryResolveCaseInsensitive(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalCode(t, codeRecord{Code: "KQ-AB12", ClinicID: "clinic-1"})},
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Name: "City Care", Timezone: "Asia/Kolkata"})},
		},
	}
	dir, _ := newTestDirectory(t, mock)

	c, err := dir.Resolve(context.Background(), "kq-ab12")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if c.ID != "clinic-1" {
		t.Fatalf("unexpected clinic: %+v", c)
	}
}

func TestDirectoryResolveCachesHits(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalCode(t, codeRecord{Code: "KQ-AB12", ClinicID: "clinic-1"})},
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Name: "City Care", Timezone: "Asia/Kolkata"})},
		},
	}
	dir, _ := newTestDirectory(t, mock)

	if _, err := dir.Resolve(context.Background(), "KQ-AB12"); err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	if len(mock.getInputs) != 2 {
		t.Fatalf("expected 2 store lookups on a cold cache, got %d", len(mock.getInputs))
	}

	c, err := dir.Resolve(context.Background(), "KQ-AB12")
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if c.ID != "clinic-1" {
		t.Fatalf("unexpected clinic from cache: %+v", c)
	}
	if len(mock.getInputs) != 2 {
		t.Fatalf("expected cache to absorb the second lookup, got %d store lookups", len(mock.getInputs))
	}
}

func TestDirectoryResolveUnknownCode(t *testing.T) {
	dir, _ := newTestDirectory(t, &mockDynamo{})

	_, err := dir.Resolve(context.Background(), "KQ-AB12")
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestDirectoryAssignCode(t *testing.T) {
	updated := Clinic{ID: "clinic-1", Name: "City Care", Timezone: "Asia/Kolkata", ShortCode: "KQ-NEW1"}
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Name: "City Care", Timezone: "Asia/Kolkata"})},
		},
		updateOutput: &dynamodb.UpdateItemOutput{Attributes: mustMarshalClinic(t, updated)},
	}
	dir, _ := newTestDirectory(t, mock)

	c, err := dir.AssignCode(context.Background(), "clinic-1", "kq-new1")
	if err != nil {
		t.Fatalf("AssignCode returned error: %v", err)
	}
	if c.ShortCode != "KQ-NEW1" {
		t.Fatalf("expected normalized code on clinic, got %q", c.ShortCode)
	}
	if len(mock.putInputs) != 1 {
		t.Fatalf("expected the code to be claimed once, got %d puts", len(mock.putInputs))
	}
	if len(mock.deleteInputs) != 0 {
		t.Fatalf("no previous code to release, got %d deletes", len(mock.deleteInputs))
	}
}

func TestDirectoryAssignCodeImmutableOnceAssigned(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Timezone: "UTC", ShortCode: "KQ-OLD1"})},
		},
	}
	dir, _ := newTestDirectory(t, mock)

	_, err := dir.AssignCode(context.Background(), "clinic-1", "KQ-NEW1")
	if !errors.Is(err, ErrCodeAlreadyAssigned) {
		t.Fatalf("expected ErrCodeAlreadyAssigned, got %v", err)
	}
	if len(mock.putInputs) != 0 || len(mock.updateInputs) != 0 || len(mock.deleteInputs) != 0 {
		t.Fatal("a rejected reassignment must not touch the store")
	}
}

func TestDirectoryAssignGeneratedKeepsExistingCode(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Timezone: "UTC", ShortCode: "KQ-OLD1"})},
		},
	}
	dir, _ := newTestDirectory(t, mock)

	c, err := dir.AssignCode(context.Background(), "clinic-1", "")
	if err != nil {
		t.Fatalf("AssignCode returned error: %v", err)
	}
	if c.ShortCode != "KQ-OLD1" {
		t.Fatalf("expected held code to survive, got %q", c.ShortCode)
	}
	if len(mock.putInputs) != 0 || len(mock.updateInputs) != 0 {
		t.Fatal("ensuring a code on an already-coded clinic should not touch the store")
	}
}

func TestDirectoryAssignCodeNoopWhenAlreadyOwned(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Timezone: "UTC", ShortCode: "KQ-AB12"})},
		},
	}
	dir, _ := newTestDirectory(t, mock)

	c, err := dir.AssignCode(context.Background(), "clinic-1", "KQ-AB12")
	if err != nil {
		t.Fatalf("AssignCode returned error: %v", err)
	}
	if c.ShortCode != "KQ-AB12" {
		t.Fatalf("unexpected clinic: %+v", c)
	}
	if len(mock.putInputs) != 0 || len(mock.updateInputs) != 0 {
		t.Fatal("reassigning the held code should not touch the store")
	}
}

func TestDirectoryAssignCodeTaken(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Timezone: "UTC"})},
		},
		putErr: conditionalFailure(),
	}
	dir, _ := newTestDirectory(t, mock)

	_, err := dir.AssignCode(context.Background(), "clinic-1", "KQ-AB12")
	if !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
}

func TestDirectoryAssignGeneratedCode(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Timezone: "UTC"})},
		},
		updateOutput: &dynamodb.UpdateItemOutput{
			Attributes: mustMarshalClinic(t, Clinic{ID: "clinic-1", Timezone: "UTC", ShortCode: "KQ-GEN1"}),
		},
	}
	dir, _ := newTestDirectory(t, mock)

	if _, err := dir.AssignCode(context.Background(), "clinic-1", ""); err != nil {
		t.Fatalf("AssignCode returned error: %v", err)
	}
	if len(mock.putInputs) != 1 {
		t.Fatalf("expected one generated claim, got %d", len(mock.putInputs))
	}
	var rec codeRecord
	if err := attributevalue.UnmarshalMap(mock.putInputs[0].Item, &rec); err != nil {
		t.Fatalf("unmarshal claimed code: %v", err)
	}
	if !ValidCode(rec.Code) {
		t.Fatalf("generated code %q is not well formed", rec.Code)
	}
	if rec.ClinicID != "clinic-1" {
		t.Fatalf("claim recorded wrong clinic: %+v", rec)
	}
}

func TestDirectoryAssignMalformed(t *testing.T) {
	mock := &mockDynamo{
		getOutputs: []*dynamodb.GetItemOutput{
			{Item: mustMarshalClinic(t, Clinic{ID: "clinic-1", Timezone: "UTC"})},
		},
	}
	dir, _ := newTestDirectory(t, mock)

	_, err := dir.AssignCode(context.Background(), "clinic-1", "KQ-TOOLONG")
	if !errors.Is(err, ErrMalformedCode) {
		t.Fatalf("expected ErrMalformedCode, got %v", err)
	}
}
