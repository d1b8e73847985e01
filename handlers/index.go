package handlers

import (
	"net/http"

	"fknsrs.biz/p/ytmeta/internal/ctxconfig"
	"fknsrs.biz/p/ytmeta/internal/ctxdb"
	"fknsrs.biz/p/ytmeta/internal/ctxquota"
)

type indexResponse struct {
	Channels int `json:"channels"`
	Videos   int `json:"videos"`
	Comments int `json:"comments"`

	QuotaUsed      int  `json:"quota_used"`
	QuotaRemaining int  `json:"quota_remaining"`
	QuotaUnlimited bool `json:"quota_unlimited"`

	ChannelRefresh    string `json:"channel_refresh"`
	VideoRefreshTiers string `json:"video_refresh_tiers"`
}

func Index(rw http.ResponseWriter, r *http.Request) {
	db := ctxdb.GetDB(r.Context())

	var res indexResponse

	for _, e := range []struct {
		query string
		out   *int
	}{
		{"select count(*) from channels", &res.Channels},
		{"select count(*) from videos", &res.Videos},
		{"select count(*) from comments", &res.Comments},
	} {
		if err := db.QueryRowContext(r.Context(), e.query).Scan(e.out); err != nil {
			panic(err)
		}
	}

	if g := ctxquota.GetGovernor(r.Context()); g != nil {
		res.QuotaUsed = g.Used()
		res.QuotaRemaining = g.Remaining()
		res.QuotaUnlimited = g.Unlimited()
	}

	cfg := ctxconfig.GetConfig(r.Context())
	res.ChannelRefresh = cfg.ChannelMaxAge().String()
	if tiers, err := cfg.VideoRefreshTiers.MarshalText(); err == nil {
		res.VideoRefreshTiers = string(tiers)
	}

	respondJSON(rw, res)
}
