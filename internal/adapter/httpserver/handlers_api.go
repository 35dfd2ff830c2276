package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleWorldView(c echo.Context) error {
	results, err := s.app.WorldView(c.Request().Context())
	if err != nil {
		return fmt.Errorf("world view: %w", err)
	}

	response := map[string]any{
		"countries": results,
		"tracked":   len(s.app.Countries()),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write world view response: %w", err)
	}
	return nil
}

func (s *Server) handleCountryEmotion(c echo.Context) error {
	country := c.Param("country")

	result, err := s.app.CountryEmotion(c.Request().Context(), country)
	if err != nil {
		return fmt.Errorf("country emotion for %s: %w", country, err)
	}

	if err := c.JSON(http.StatusOK, result); err != nil {
		return fmt.Errorf("failed to write country response: %w", err)
	}
	return nil
}

func (s *Server) handleCountryTrend(c echo.Context) error {
	country := c.Param("country")

	trend, err := s.app.Trend(country)
	if err != nil {
		return fmt.Errorf("trend for %s: %w", country, err)
	}

	response := map[string]string{
		"country": country,
		"trend":   trend,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write trend response: %w", err)
	}
	return nil
}

func (s *Server) handleCountryStats(c echo.Context) error {
	country := c.Param("country")

	stats, err := s.app.CountryStats(c.Request().Context(), country)
	if err != nil {
		return fmt.Errorf("country stats for %s: %w", country, err)
	}

	if err := c.JSON(http.StatusOK, stats); err != nil {
		return fmt.Errorf("failed to write country stats response: %w", err)
	}
	return nil
}

func (s *Server) handleSchedulerStats(c echo.Context) error {
	stats, err := s.app.SchedulerStats(c.Request().Context())
	if err != nil {
		return fmt.Errorf("scheduler stats: %w", err)
	}

	if err := c.JSON(http.StatusOK, stats); err != nil {
		return fmt.Errorf("failed to write scheduler stats response: %w", err)
	}
	return nil
}

func (s *Server) handleCacheStats(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.CacheStats()); err != nil {
		return fmt.Errorf("failed to write cache stats response: %w", err)
	}
	return nil
}
