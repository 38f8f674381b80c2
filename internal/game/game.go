package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teawars/teawars-api/internal/auth"
	"github.com/teawars/teawars-api/internal/config"
	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service handles game and player lifecycle: creating games, joining
// players with their shop and starting products, and employee management.
type Service struct {
	gormDB *gorm.DB
	db     *Database
	auth   *auth.Service
}

// NewService creates a new game service with the given database connection
func NewService(gormDB *gorm.DB, authService *auth.Service) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
		auth:   authService,
	}
}

// CreateGame creates a new game in round 1 and seeds its recipe table.
func (s *Service) CreateGame(name string) (*types.Game, error) {
	logger := log.With().Str("service", "game").Logger()

	var game *types.Game
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		game = &types.Game{
			GameID:       "GME_" + uuid.New().String(),
			Name:         name,
			Status:       types.GameStatusInProgress,
			CurrentRound: 1,
			TotalRounds:  config.TotalRounds,
		}
		if err := db.CreateGame(game); err != nil {
			return err
		}

		for _, seed := range config.DefaultRecipes {
			materials, err := json.Marshal(seed.Materials)
			if err != nil {
				return err
			}
			recipe := &types.Recipe{
				RecipeID:       "RCP_" + uuid.New().String(),
				GameID:         game.GameID,
				Name:           seed.Name,
				BaseFanRate:    seed.BaseFanRate,
				SuggestedPrice: seed.SuggestedPrice,
				ResearchCost:   seed.ResearchCost,
				Materials:      datatypes.JSON(materials),
			}
			if err := db.CreateRecipe(recipe); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create game")
		return nil, err
	}

	logger.Info().Str("game_id", game.GameID).Str("name", game.Name).Msg("game created")
	return game, nil
}

// JoinResult is returned when a player joins a game.
type JoinResult struct {
	Player   *types.Player         `json:"player"`
	Shop     *types.Shop           `json:"shop"`
	Products []types.PlayerProduct `json:"products"`
	Token    string                `json:"session_token"`
}

// JoinGame adds a player to a running game with starting cash, a shop,
// and one product per seeded recipe (free recipes unlocked, the rest
// locked behind product research). A session token is issued for the
// player's subsequent requests.
func (s *Service) JoinGame(gameID, nickname string) (*JoinResult, error) {
	logger := log.With().
		Str("game_id", gameID).
		Str("service", "game").
		Logger()

	if nickname == "" {
		return nil, fmt.Errorf("%w: nickname is required", response.ErrValidation)
	}

	var result *JoinResult
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		game, err := db.GetGame(gameID)
		if err != nil {
			return err
		}
		if game.Status != types.GameStatusInProgress {
			return fmt.Errorf("%w: game is not in progress (current status: %s)", response.ErrValidation, game.Status)
		}

		player := &types.Player{
			PlayerID:   "PLR_" + uuid.New().String(),
			GameID:     gameID,
			Nickname:   nickname,
			Cash:       config.StartingCash,
			IsActive:   true,
			LastSeenAt: time.Now(),
		}
		if err := db.CreatePlayer(player); err != nil {
			return err
		}

		shop := &types.Shop{
			ShopID:   "SHP_" + uuid.New().String(),
			PlayerID: player.PlayerID,
			Name:     nickname + "'s Tea Shop",
			Rent:     config.DefaultShopRent,
		}
		if err := db.CreateShop(shop); err != nil {
			return err
		}

		recipes, err := db.GetRecipesByGame(gameID)
		if err != nil {
			return err
		}
		products := make([]types.PlayerProduct, 0, len(recipes))
		for _, recipe := range recipes {
			product := types.PlayerProduct{
				ProductID:  "PRD_" + uuid.New().String(),
				PlayerID:   player.PlayerID,
				RecipeID:   recipe.RecipeID,
				IsUnlocked: recipe.ResearchCost == 0,
			}
			if err := db.CreatePlayerProduct(&product); err != nil {
				return err
			}
			products = append(products, product)
		}

		token, err := s.auth.GenerateToken(player.PlayerID, gameID)
		if err != nil {
			return err
		}

		result = &JoinResult{
			Player:   player,
			Shop:     shop,
			Products: products,
			Token:    token.Token,
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to join game")
		return nil, err
	}

	logger.Info().
		Str("player_id", result.Player.PlayerID).
		Str("nickname", nickname).
		Msg("player joined game")

	return result, nil
}

// GameState is a game's public state with its player roster.
type GameState struct {
	Game    *types.Game    `json:"game"`
	Players []types.Player `json:"players"`
}

func (s *Service) GetGameState(gameID string) (*GameState, error) {
	game, err := s.db.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.db.GetPlayersByGame(gameID)
	if err != nil {
		return nil, err
	}
	return &GameState{Game: game, Players: players}, nil
}

func (s *Service) ListGames() ([]types.Game, error) {
	return s.db.ListGames()
}

// PlayerState is a player's full view: shop, staff and product catalog.
type PlayerState struct {
	Player    *types.Player         `json:"player"`
	Shop      *types.Shop           `json:"shop"`
	Employees []types.Employee      `json:"employees"`
	Products  []types.PlayerProduct `json:"products"`
}

func (s *Service) GetPlayerState(playerID string) (*PlayerState, error) {
	player, err := s.db.GetPlayer(playerID)
	if err != nil {
		return nil, err
	}
	shop, err := s.db.GetShopByPlayer(playerID)
	if err != nil {
		return nil, err
	}
	employees, err := s.db.GetEmployeesByShop(shop.ShopID)
	if err != nil {
		return nil, err
	}
	products, err := s.db.GetProductsByPlayer(playerID)
	if err != nil {
		return nil, err
	}
	return &PlayerState{
		Player:    player,
		Shop:      shop,
		Employees: employees,
		Products:  products,
	}, nil
}

// TouchPlayer records activity for the inactivity cleanup.
func (s *Service) TouchPlayer(playerID string) error {
	return s.db.TouchPlayer(playerID)
}

// HireEmployee adds a salaried employee to the player's shop. The salary
// recurs as a round expense while the employee stays active.
func (s *Service) HireEmployee(playerID, name string, salary float64) (*types.Employee, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: employee name is required", response.ErrValidation)
	}
	if salary <= 0 {
		return nil, fmt.Errorf("%w: salary must be positive", response.ErrValidation)
	}

	shop, err := s.db.GetShopByPlayer(playerID)
	if err != nil {
		return nil, err
	}

	employee := &types.Employee{
		EmployeeID: "EMP_" + uuid.New().String(),
		ShopID:     shop.ShopID,
		Name:       name,
		Salary:     salary,
		IsActive:   true,
	}
	if err := s.db.CreateEmployee(employee); err != nil {
		return nil, err
	}
	return employee, nil
}

// FireEmployee deactivates an employee; their salary stops counting from
// the next expense aggregation.
func (s *Service) FireEmployee(playerID, employeeID string) (*types.Employee, error) {
	shop, err := s.db.GetShopByPlayer(playerID)
	if err != nil {
		return nil, err
	}
	employee, err := s.db.GetEmployee(employeeID)
	if err != nil {
		return nil, err
	}
	if employee.ShopID != shop.ShopID {
		return nil, fmt.Errorf("%w: employee %s does not work for player %s", response.ErrValidation, employeeID, playerID)
	}

	employee.IsActive = false
	if err := s.db.SaveEmployee(employee); err != nil {
		return nil, err
	}
	return employee, nil
}

// GinHandlers contains HTTP handlers for game endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) CreateGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		game, err := h.service.CreateGame(request.Name)
		response.Handle(c, game, err)
	}
}

func (h *GinHandlers) JoinGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("game_id")
		var request struct {
			Nickname string `json:"nickname" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.JoinGame(gameID, request.Nickname)
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) GetGameStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("game_id")

		state, err := h.service.GetGameState(gameID)
		response.Handle(c, state, err)
	}
}

func (h *GinHandlers) ListGamesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		games, err := h.service.ListGames()
		response.Handle(c, games, err)
	}
}

func (h *GinHandlers) GetPlayerStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")

		state, err := h.service.GetPlayerState(playerID)
		response.Handle(c, state, err)
	}
}

func (h *GinHandlers) HireEmployeeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		var request struct {
			Name   string  `json:"name" binding:"required"`
			Salary float64 `json:"salary" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		employee, err := h.service.HireEmployee(playerID, request.Name, request.Salary)
		response.Handle(c, employee, err)
	}
}

func (h *GinHandlers) FireEmployeeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		employeeID := c.Param("employee_id")

		employee, err := h.service.FireEmployee(playerID, employeeID)
		response.Handle(c, employee, err)
	}
}
