package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/models"
	"github.com/username/bankfolio/backend/src/utils"
)

type TagHandler struct{}

func NewTagHandler() *TagHandler {
	return &TagHandler{}
}

func (h *TagHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(`SELECT id, name FROM tags WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		utils.SendJSONError(w, "Failed to list tags", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			utils.SendJSONError(w, "Failed to read tags", http.StatusInternalServerError)
			return
		}
		tags = append(tags, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tags)
}

func (h *TagHandler) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var tag models.Tag
	if err := json.NewDecoder(r.Body).Decode(&tag); err != nil || tag.Name == "" {
		utils.SendJSONError(w, "Tag name is required", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`INSERT INTO tags (user_id, name) VALUES (?, ?)`, userID, tag.Name)
	if err != nil {
		utils.SendJSONError(w, "A tag with this name already exists", http.StatusConflict)
		return
	}
	tag.ID, _ = res.LastInsertId()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tag)
}

func (h *TagHandler) HandleListTagRules(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.DB.Query(`
		SELECT r.id, r.matching_pattern, r.is_regex,
			IFNULL((SELECT GROUP_CONCAT(tag_id) FROM tag_rule_tag WHERE tag_rule_id = r.id), '')
		FROM tag_rules r WHERE r.user_id = ?`, userID)
	if err != nil {
		utils.SendJSONError(w, "Failed to list tag rules", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	rules := []models.TagRule{}
	for rows.Next() {
		var rule models.TagRule
		var tagIDs string
		if err := rows.Scan(&rule.ID, &rule.MatchingPattern, &rule.IsRegex, &tagIDs); err != nil {
			utils.SendJSONError(w, "Failed to read tag rules", http.StatusInternalServerError)
			return
		}
		rule.TagIDs = splitIDList(tagIDs)
		rules = append(rules, rule)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules)
}

func (h *TagHandler) HandleCreateTagRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var rule models.TagRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil || rule.MatchingPattern == "" {
		utils.SendJSONError(w, "A matching pattern is required", http.StatusBadRequest)
		return
	}
	if rule.IsRegex {
		if _, err := regexp.Compile(rule.MatchingPattern); err != nil {
			utils.SendJSONError(w, "Matching pattern is not a valid regular expression", http.StatusBadRequest)
			return
		}
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		utils.SendJSONError(w, "Failed to create tag rule", http.StatusInternalServerError)
		return
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(`
		INSERT INTO tag_rules (user_id, matching_pattern, is_regex) VALUES (?, ?, ?)`,
		userID, rule.MatchingPattern, rule.IsRegex)
	if err != nil {
		utils.SendJSONError(w, "Failed to create tag rule", http.StatusInternalServerError)
		return
	}
	rule.ID, _ = res.LastInsertId()

	for _, tagID := range rule.TagIDs {
		if _, err := dbTx.Exec(`INSERT INTO tag_rule_tag (tag_rule_id, tag_id) VALUES (?, ?)`, rule.ID, tagID); err != nil {
			utils.SendJSONError(w, "Tag rule references an unknown tag", http.StatusBadRequest)
			return
		}
	}

	if err := dbTx.Commit(); err != nil {
		utils.SendJSONError(w, "Failed to create tag rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rule)
}

func splitIDList(s string) []int64 {
	if s == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
