package handlers

import (
	"database/sql"
	"net/http"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytmeta/internal/ctxdb"
	"fknsrs.biz/p/ytmeta/internal/httputil"
	"fknsrs.biz/p/ytmeta/models"
)

func Videos(rw http.ResponseWriter, r *http.Request) {
	order := []sb.AsOrderingTerm{sb.OrderDesc(models.VideoTable.C("PublishedAt"))}

	var videos []models.Video
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		nil,
		order,
		sb.OffsetLimit(nil, sb.Literal("1000")),
	); err != nil {
		panic(err)
	}

	respondJSON(rw, videos)
}

func VideoComments(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var video models.Video
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &video, "where external_id = ?", vars["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	condition := sb.BinaryOperator("=", models.CommentTable.C("VideoExternalID"), sb.Bind(video.ExternalID))
	order := []sb.AsOrderingTerm{sb.OrderAsc(models.CommentTable.C("PublishedAt"))}

	var comments []models.Comment
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&comments,
		condition,
		order,
		sb.OffsetLimit(nil, sb.Literal("1000")),
	); err != nil {
		panic(err)
	}

	respondJSON(rw, comments)
}
