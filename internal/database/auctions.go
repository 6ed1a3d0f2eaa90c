package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"
)

func (s *Service) GetAuction(ctx context.Context, auctionId string) (*models.Auction, error) {
	return getAuction(ctx, s.db, auctionId)
}

// ListAuctions returns all open auctions ordered by end time.
func (s *Service) ListAuctions(ctx context.Context) ([]models.Auction, error) {
	return queryAuctions(ctx, s.db, queryListAuctions)
}

// ListExpiredAuctions returns auctions whose end time is at or before now.
func (s *Service) ListExpiredAuctions(ctx context.Context, now time.Time) ([]models.Auction, error) {
	return queryAuctions(ctx, s.db, queryListExpiredAuctions, toMillis(now))
}

func getAuction(ctx context.Context, q queryer, auctionId string) (*models.Auction, error) {
	auction, err := scanAuction(q.QueryRowContext(ctx, queryGetAuction, auctionId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrAuctionNotFound, auctionId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func queryAuctions(ctx context.Context, q queryer, query string, args ...any) ([]models.Auction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer closeRows(rows)

	var auctions []models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, *auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auction rows: %w", err)
	}
	return auctions, nil
}

func scanAuction(row rowScanner) (*models.Auction, error) {
	var (
		auction    models.Auction
		startPrice int64
		createdAt  int64
		endTime    int64
		bidId      sql.NullString
		bidAmount  sql.NullInt64
		bidder     sql.NullString
		bidTime    sql.NullInt64
	)
	err := row.Scan(&auction.Id, &auction.SellerId, &auction.GoodsAmount, &startPrice,
		&bidId, &bidAmount, &bidder, &bidTime,
		&createdAt, &endTime, &auction.Version)
	if err != nil {
		return nil, err
	}

	auction.StartPrice = models.Nanos(startPrice)
	auction.CreatedAt = fromMillis(createdAt)
	auction.EndTime = fromMillis(endTime)
	if bidId.Valid {
		auction.HighestBid = &models.Bid{
			Id:       bidId.String,
			Amount:   models.Nanos(bidAmount.Int64),
			BidderId: bidder.String,
			Time:     fromMillis(bidTime.Int64),
		}
	}
	return &auction, nil
}

func insertAuction(ctx context.Context, q queryer, auction *models.Auction) error {
	_, err := q.ExecContext(ctx, queryInsertAuction,
		auction.Id, auction.SellerId, auction.GoodsAmount, int64(auction.StartPrice),
		toMillis(auction.CreatedAt), toMillis(auction.EndTime))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: auction %s already exists", store.ErrDuplicateTransaction, auction.Id)
		}
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	auction.Version = 1
	return nil
}

func updateAuctionBid(ctx context.Context, q queryer, auction *models.Auction) error {
	bid := auction.HighestBid
	if bid == nil {
		return fmt.Errorf("%w: auction %s has no bid to store", store.ErrInvalidInput, auction.Id)
	}

	result, err := q.ExecContext(ctx, queryUpdateAuctionBid,
		bid.Id, int64(bid.Amount), bid.BidderId, toMillis(bid.Time),
		auction.Id, auction.Version)
	if err != nil {
		return fmt.Errorf("failed to update auction bid: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("auction %s bid update failed - %w", auction.Id, store.ErrConcurrentModification)
	}
	auction.Version++
	return nil
}

func deleteAuction(ctx context.Context, q queryer, auctionId string) error {
	result, err := q.ExecContext(ctx, queryDeleteAuction, auctionId)
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrAuctionNotFound, auctionId)
	}
	return nil
}
