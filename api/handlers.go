package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/market"
)

type priceResponse struct {
	Asset   string `json:"asset"`
	Price   uint64 `json:"price"`
	Display string `json:"display"`
	Oracle  bool   `json:"oracle"`
}

type setPriceRequest struct {
	Price uint64 `json:"price"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type openRequest struct {
	Asset     string           `json:"asset" binding:"required"`
	Amount    uint64           `json:"amount"`
	Direction market.Direction `json:"direction" binding:"required"`
}

type autoTradeRequest struct {
	Asset    string `json:"asset" binding:"required"`
	Amount   uint64 `json:"amount"`
	Strategy string `json:"strategy"`
}

func caller(c *gin.Context) (market.Account, error) {
	t := c.GetHeader(TraderHeader)
	if t == "" {
		return "", errNoTrader
	}
	return market.Account(t), nil
}

func assetParam(c *gin.Context) (market.Asset, error) {
	a, err := market.NewAsset(c.Param("asset"))
	if err != nil {
		return "", badRequest{err}
	}
	return a, nil
}

func idParam(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, badRequest{err}
	}
	return id, nil
}

func (s *Server) GetPrice(c *gin.Context) {
	asset, err := assetParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	px, err := s.engine.Price(ctx, asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	_, oracle, err := s.engine.OraclePrice(ctx, asset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, priceResponse{
		Asset:   string(asset),
		Price:   uint64(px),
		Display: px.String(),
		Oracle:  oracle,
	})
}

func (s *Server) PutPrice(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !s.engine.IsOwner(who) {
		s.fail(c, errForbidden)
		return
	}
	asset, err := assetParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}
	if err := s.engine.UpdatePrice(c.Request.Context(), asset, market.Price(req.Price)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, priceResponse{
		Asset:   string(asset),
		Price:   req.Price,
		Display: market.Price(req.Price).String(),
		Oracle:  true,
	})
}

func (s *Server) PostDeposit(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}
	bal, err := s.engine.Deposit(c.Request.Context(), who, market.Amount(req.Amount))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": uint64(bal)})
}

func (s *Server) PostSwap(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}
	out, err := s.engine.Swap(c.Request.Context(), who, market.Amount(req.Amount))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": uint64(out)})
}

func (s *Server) OpenPosition(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}
	asset, err := market.NewAsset(req.Asset)
	if err != nil {
		s.fail(c, badRequest{err})
		return
	}
	id, err := s.engine.Open(c.Request.Context(), who, asset, market.Amount(req.Amount), req.Direction)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) GetPosition(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.engine.Position(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) ClosePosition(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	pnl, err := s.engine.Close(c.Request.Context(), id, c.DefaultQuery("reason", ""))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "pnl": pnl})
}

func (s *Server) TraderPositions(c *gin.Context) {
	trader := market.Account(c.Param("trader"))
	ctx := c.Request.Context()

	var (
		list []ledger.Position
		err  error
	)
	active, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	if active {
		list, err = s.engine.TraderActivePositions(ctx, trader)
	} else {
		list, err = s.engine.TraderPositions(ctx, trader)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []ledger.Position{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) TraderTransactions(c *gin.Context) {
	ids, err := s.engine.TraderHistory(c.Request.Context(), market.Account(c.Param("trader")))
	if err != nil {
		s.fail(c, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	c.JSON(http.StatusOK, ids)
}

func (s *Server) TraderStats(c *gin.Context) {
	trader := market.Account(c.Param("trader"))
	ctx := c.Request.Context()

	st, err := s.engine.TraderStats(ctx, trader)
	if err != nil {
		s.fail(c, err)
		return
	}
	dep, err := s.engine.DepositBalance(ctx, trader)
	if err != nil {
		s.fail(c, err)
		return
	}
	quote, err := s.engine.QuoteBalance(ctx, trader)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   st.Total,
		"active":  st.Active,
		"deposit": uint64(dep),
		"quote":   uint64(quote),
	})
}

func (s *Server) GlobalStats(c *gin.Context) {
	st, err := s.engine.GlobalStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) AutoTrade(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req autoTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest{err})
		return
	}
	asset, err := market.NewAsset(req.Asset)
	if err != nil {
		s.fail(c, badRequest{err})
		return
	}
	id, err := s.auto.AutoTrade(c.Request.Context(), who, asset, market.Amount(req.Amount), req.Strategy)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) AutoClose(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	closed, err := s.auto.AutoClosePositions(c.Request.Context(), who)
	if err != nil {
		// partial progress is still reported
		c.AbortWithStatusJSON(statusFor(err), gin.H{"closed": closed, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}
