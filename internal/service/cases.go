package service

import (
	"net/http"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/airenas/jira-case-importer/internal/jira"
	"github.com/labstack/echo/v4"
)

func saveCases(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		issueType, err := issueTypeParam(c)
		if err != nil {
			return err
		}
		var payload api.CasePayload
		if err := c.Bind(&payload); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't decode payload")
		}
		rows := make([]domain.CaseRow, 0, len(payload.Rows))
		for _, r := range jira.FilterNonEmpty(payload.Rows) {
			rows = append(rows, r.Trimmed())
		}
		if len(rows) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "No non-empty rows to save.")
		}
		if err := data.Cases.SaveCases(c.Request().Context(), issueType, rows); err != nil {
			goapp.Log.Error().Err(err).Msg("can't save cases")
			return echo.NewHTTPError(http.StatusInternalServerError, "can't save rows")
		}
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "inserted": len(rows), "mode": "overwrite"})
	}
}

func listCases(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		issueType, err := issueTypeParam(c)
		if err != nil {
			return err
		}
		rows, err := data.Cases.GetCases(c.Request().Context(), issueType)
		if err != nil {
			goapp.Log.Error().Err(err).Msg("can't load cases")
			return echo.NewHTTPError(http.StatusInternalServerError, "can't load rows")
		}
		return c.JSON(http.StatusOK, api.CasePayload{Rows: rows})
	}
}

func clearCases(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		issueType, err := issueTypeParam(c)
		if err != nil {
			return err
		}
		deleted, err := data.Cases.DeleteCases(c.Request().Context(), issueType)
		if err != nil {
			goapp.Log.Error().Err(err).Msg("can't delete cases")
			return echo.NewHTTPError(http.StatusInternalServerError, "can't delete rows")
		}
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
	}
}

func saveCSV(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		issueType, err := issueTypeParam(c)
		if err != nil {
			return err
		}
		var payload api.CasePayload
		if err := c.Bind(&payload); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't decode payload")
		}
		rows := jira.FilterNonEmpty(payload.Rows)
		if len(rows) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "No non-empty rows to save.")
		}
		name, err := data.CSV.Save(issueType, rows)
		if err != nil {
			goapp.Log.Error().Err(err).Msg("can't save csv")
			return echo.NewHTTPError(http.StatusInternalServerError, "can't save csv")
		}
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "filename": name})
	}
}

func downloadCSV(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		name := c.Param("filename")
		path, err := data.CSV.FilePath(name)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "File not found.")
		}
		return c.Attachment(path, name)
	}
}
