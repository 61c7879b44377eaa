package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func TestPagination(t *testing.T) {
	campaigns := []*model.Campaign{}
	for i := 1; i <= 5; i++ {
		campaigns = append(campaigns, &model.Campaign{ID: int64(i), Name: fmt.Sprintf("C%d", i), Channel: "email", Status: "draft"})
	}
	svc := &service.CampaignService{
		CampaignRepo: NewMockCampaignRepo(campaigns...),
	}
	ctx := context.Background()
	pageSize := 2

	page1, pagination1, _ := svc.ListCampaigns(ctx, 1, pageSize, "", "")
	page2, _, _ := svc.ListCampaigns(ctx, 2, pageSize, "", "")

	expectedTotal := 5
	if pagination1["total_count"] != expectedTotal {
		t.Errorf("expected total_count %d, got %d", expectedTotal, pagination1["total_count"])
	}
	if pagination1["total_pages"] != 3 {
		t.Errorf("expected 3 pages, got %d", pagination1["total_pages"])
	}

	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected full pages, got %d and %d", len(page1), len(page2))
	}

	// Check descending order
	if page1[0].ID <= page1[1].ID {
		t.Errorf("expected descending order in page 1")
	}
	if page2[0].ID <= page2[1].ID {
		t.Errorf("expected descending order in page 2")
	}
	if page1[1].ID == page2[0].ID {
		t.Errorf("duplicate entry between pages: %v", page1[1].ID)
	}

	page3, pagination3, _ := svc.ListCampaigns(ctx, 3, pageSize, "", "")
	if len(page3) != 1 {
		t.Errorf("expected last page to have 1 item, got %d", len(page3))
	}
	if pagination3["total_count"] != expectedTotal {
		t.Errorf("expected total_count %d, got %d", expectedTotal, pagination3["total_count"])
	}
}

func TestPaginationClampsInput(t *testing.T) {
	svc := &service.CampaignService{CampaignRepo: NewMockCampaignRepo()}

	_, pagination, err := svc.ListCampaigns(context.Background(), 0, 500, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pagination["page"] != 1 || pagination["page_size"] != 100 {
		t.Errorf("expected page 1 size 100, got %v", pagination)
	}
}
