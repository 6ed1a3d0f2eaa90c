/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/Friday56/Goblin-miner/internal/common"
	"github.com/Friday56/Goblin-miner/internal/config"
	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
)

type action struct {
	list     bool
	player   string
	complete string
	reject   string
}

func parseAndValidateFlags() (*action, error) {
	listFlag := flag.Bool("list", false, "List pending withdrawal requests")
	playerFlag := flag.String("player", "", "With -list, show every request of this player instead")
	completeFlag := flag.String("complete", "", "Mark a pending request as paid out")
	rejectFlag := flag.String("reject", "", "Reject a pending request and refund the player")
	flag.Parse()

	chosen := 0
	for _, set := range []bool{*listFlag, *completeFlag != "", *rejectFlag != ""} {
		if set {
			chosen++
		}
	}
	if chosen != 1 {
		return nil, fmt.Errorf("exactly one of --list, --complete, --reject is required")
	}

	return &action{
		list:     *listFlag,
		player:   *playerFlag,
		complete: *completeFlag,
		reject:   *rejectFlag,
	}, nil
}

func printRequests(requests []models.WithdrawRequest) {
	common.PrintHeader("WITHDRAWAL REQUESTS", common.WideWidth)
	if len(requests) == 0 {
		fmt.Println("No requests")
	}
	for i, r := range requests {
		isLast := i == len(requests)-1
		fmt.Printf("%s %s  %-9s %s\n", common.BoxPrefix(isLast), r.Id, r.Status, r.CreatedAt.Format("2006-01-02 15:04:05"))
		detail := common.BoxDetailPrefix(isLast)
		fmt.Printf("%s   player: %s\n", detail, r.UserId)
		fmt.Printf("%s   amount: %s (fee %s, held %s)\n", detail, common.FormatTON(r.Amount), r.Fee, r.Total)
		fmt.Printf("%s   to:     %s\n", detail, r.DestinationAddress)
	}
	common.PrintSeparator("=", common.WideWidth)
}

func printResult(title string, r *models.WithdrawRequest) {
	common.PrintHeader(title, common.DefaultWidth)
	common.PrintField("ID", r.Id)
	common.PrintField("Player", r.UserId)
	common.PrintField("Amount", common.FormatTON(r.Amount))
	common.PrintField("Fee", common.FormatTON(r.Fee))
	common.PrintField("Destination", r.DestinationAddress)
	common.PrintField("Status", r.Status)
	common.PrintSeparator("=", common.DefaultWidth)
}

func explain(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "no such withdrawal request"
	case errors.Is(err, store.ErrInvalidTransition):
		return "request is no longer pending"
	default:
		return err.Error()
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	svc := services.Wallet

	switch {
	case req.list:
		var requests []models.WithdrawRequest
		if req.player != "" {
			requests, err = svc.ListWithdrawals(ctx, req.player)
		} else {
			requests, err = svc.ListPendingWithdrawals(ctx)
		}
		if err != nil {
			zap.L().Fatal("Failed to list withdrawals", zap.Error(err))
		}
		printRequests(requests)

	case req.complete != "":
		completed, err := svc.CompleteWithdrawal(ctx, req.complete)
		if err != nil {
			fmt.Printf("❌ Cannot complete %s: %s\n", req.complete, explain(err))
			zap.L().Fatal("Failed to complete withdrawal", zap.Error(err))
		}
		printResult("WITHDRAWAL COMPLETED", completed)

	case req.reject != "":
		rejected, err := svc.RejectWithdrawal(ctx, req.reject)
		if err != nil {
			fmt.Printf("❌ Cannot reject %s: %s\n", req.reject, explain(err))
			zap.L().Fatal("Failed to reject withdrawal", zap.Error(err))
		}
		printResult("WITHDRAWAL REJECTED", rejected)
		fmt.Printf("✅ %s returned to %s\n\n", common.FormatTON(rejected.Total), rejected.UserId)
	}
}
