package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/cache"
	"affiliate-api/internal/config"
	"affiliate-api/internal/models"
	"affiliate-api/internal/repository"
)

// NetworkService is the read side of the sponsorship tree: hierarchical
// views and per-level aggregates for dashboards. It never touches ledgers
// or distributions.
type NetworkService interface {
	BuildTree(ctx context.Context, rootID primitive.ObjectID, maxDepth int) (*TreeNode, error)
	LevelStats(ctx context.Context, rootID primitive.ObjectID) ([]*LevelStat, error)
}

type networkService struct {
	affiliateRepo  repository.AffiliateRepository
	treeCache      cache.TreeCache
	maxTreeDepth   int
	activityWindow time.Duration
}

func NewNetworkService(
	affiliateRepo repository.AffiliateRepository,
	treeCache cache.TreeCache,
	cfg config.NetworkConfig,
) NetworkService {
	return &networkService{
		affiliateRepo:  affiliateRepo,
		treeCache:      treeCache,
		maxTreeDepth:   cfg.MaxTreeDepth,
		activityWindow: cfg.ActivityWindow,
	}
}

// TreeNode is one affiliate in the hierarchical dashboard view. The active
// flag is recency-derived (last access within the activity window) and is
// not the monthly-activity flag the withdrawal gate reads.
type TreeNode struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Coupon          string               `json:"coupon"`
	ReferralCode    string               `json:"referral_code"`
	PositionSlot    string               `json:"position_slot,omitempty"`
	IsActive        bool                 `json:"is_active"`
	DirectReferrals int                  `json:"direct_referrals"`
	SignupDate      time.Time            `json:"signup_date"`
	Children        map[string]*TreeNode `json:"children,omitempty"`
}

type LevelStat struct {
	Level    int `json:"level"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Total    int `json:"total"`
}

// BuildTree traverses the tree from root. The depth is capped server-side
// regardless of what the client asked for, bounding response size.
func (s *networkService) BuildTree(ctx context.Context, rootID primitive.ObjectID, maxDepth int) (*TreeNode, error) {
	if maxDepth <= 0 || maxDepth > s.maxTreeDepth {
		maxDepth = s.maxTreeDepth
	}

	cacheKey := fmt.Sprintf("tree:%s:%d", rootID.Hex(), maxDepth)
	if s.treeCache != nil {
		var cached TreeNode
		if found, err := s.treeCache.Get(ctx, cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	tree, err := s.buildSubtree(ctx, rootID, maxDepth)
	if err != nil {
		return nil, err
	}

	if s.treeCache != nil {
		if err := s.treeCache.Set(ctx, cacheKey, tree); err != nil {
			logrus.WithError(err).Warn("Failed to cache network tree")
		}
	}

	return tree, nil
}

func (s *networkService) buildSubtree(ctx context.Context, id primitive.ObjectID, depthLeft int) (*TreeNode, error) {
	affiliate, err := s.affiliateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	node := &TreeNode{
		ID:              affiliate.ID.Hex(),
		Name:            affiliate.Name,
		Coupon:          affiliate.Coupon,
		ReferralCode:    affiliate.ReferralCode,
		PositionSlot:    affiliate.PositionSlot,
		IsActive:        affiliate.IsRecentlyActive(s.activityWindow),
		DirectReferrals: len(affiliate.Children.All()),
		SignupDate:      affiliate.CreatedAt,
	}

	if depthLeft <= 1 {
		return node, nil
	}

	for _, slot := range models.SlotOrder {
		childID := affiliate.Children.Slot(slot)
		if childID == nil {
			continue
		}

		child, err := s.buildSubtree(ctx, *childID, depthLeft-1)
		if err != nil {
			return nil, err
		}

		if node.Children == nil {
			node.Children = make(map[string]*TreeNode, 3)
		}
		node.Children[slot] = child
	}

	return node, nil
}

// LevelStats aggregates active/inactive counts per level beneath root,
// bounded by the same server-side depth cap as the tree view.
func (s *networkService) LevelStats(ctx context.Context, rootID primitive.ObjectID) ([]*LevelStat, error) {
	root, err := s.affiliateRepo.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	var stats []*LevelStat
	level := root.Children.All()

	for depth := 1; depth <= s.maxTreeDepth && len(level) > 0; depth++ {
		stat := &LevelStat{Level: depth}
		var next []primitive.ObjectID

		for _, id := range level {
			affiliate, err := s.affiliateRepo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}

			if affiliate.IsRecentlyActive(s.activityWindow) {
				stat.Active++
			} else {
				stat.Inactive++
			}
			stat.Total++

			next = append(next, affiliate.Children.All()...)
		}

		stats = append(stats, stat)
		level = next
	}

	return stats, nil
}
