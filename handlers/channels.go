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

func Channels(rw http.ResponseWriter, r *http.Request) {
	order := []sb.AsOrderingTerm{sb.OrderAsc(models.ChannelTable.C("ID"))}

	var channels []models.Channel
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&channels,
		nil,
		order,
		sb.OffsetLimit(nil, sb.Literal("1000")),
	); err != nil {
		panic(err)
	}

	respondJSON(rw, channels)
}

func ChannelVideos(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var channel models.Channel
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &channel, "where external_id = ?", vars["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	condition := sb.BinaryOperator("=", models.VideoTable.C("ChannelExternalID"), sb.Bind(channel.ExternalID))
	order := []sb.AsOrderingTerm{sb.OrderDesc(models.VideoTable.C("PublishedAt"))}

	var videos []models.Video
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		condition,
		order,
		sb.OffsetLimit(nil, sb.Literal("1000")),
	); err != nil {
		panic(err)
	}

	respondJSON(rw, videos)
}
