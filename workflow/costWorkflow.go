package workflow

import (
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// accrueCostsTx charges each role this week's holding and backorder costs
// from its current inventory position and rolls the sum onto the game's team
// total. All money stays in decimal; int positions are converted once here.
// Runs inside the settlement transaction.
func accrueCostsTx(tx *gorm.DB, logger *logrus.Logger, game *models.Game, players []*models.Player) error {
	weekTotal := decimal.Zero
	for _, player := range players {
		weeklyHolding := game.HoldingCost.Mul(decimal.NewFromInt(int64(player.Inventory)))
		weeklyBackorder := game.BackorderCost.Mul(decimal.NewFromInt(int64(player.Backlog)))

		totalHolding := player.TotalHoldingCost.Add(weeklyHolding)
		totalBackorder := player.TotalBackorderCost.Add(weeklyBackorder)
		totalCost := totalHolding.Add(totalBackorder)

		err := tx.Model(&models.Player{}).
			Where("id = ?", player.ID).
			Updates(map[string]interface{}{
				"weekly_holding_cost":   weeklyHolding,
				"weekly_backorder_cost": weeklyBackorder,
				"total_holding_cost":    totalHolding,
				"total_backorder_cost":  totalBackorder,
				"total_cost":            totalCost,
			}).Error
		if err != nil {
			config.LogError(logger, "costWorkflow.go", "accrueCostsTx", "update player costs", player.Role, err)
			return err
		}
		player.WeeklyHoldingCost = weeklyHolding
		player.WeeklyBackorderCost = weeklyBackorder
		player.TotalHoldingCost = totalHolding
		player.TotalBackorderCost = totalBackorder
		player.TotalCost = totalCost

		weekTotal = weekTotal.Add(weeklyHolding).Add(weeklyBackorder)
	}

	newTeamTotal := game.TotalTeamCost.Add(weekTotal)
	err := tx.Model(&models.Game{}).
		Where("id = ?", game.ID).
		Update("total_team_cost", newTeamTotal).Error
	if err != nil {
		config.LogError(logger, "costWorkflow.go", "accrueCostsTx", "update team cost", game.ID, err)
		return err
	}
	game.TotalTeamCost = newTeamTotal
	return nil
}
