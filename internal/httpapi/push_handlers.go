package httpapi

import (
	"encoding/json"
	"net/http"
)

// reportSubscription is a device that wants a push when one of its owner's
// interview reports is ready. Only ios devices are pushed today; android
// tokens are kept so the client can register once for both.
type reportSubscription struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func decodeSubscription(req *http.Request, needPlatform bool) (reportSubscription, string) {
	var sub reportSubscription
	if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
		return sub, "invalid request body"
	}
	if sub.Token == "" {
		return sub, "device token is required"
	}
	if needPlatform && sub.Platform != "ios" && sub.Platform != "android" {
		return sub, "platform must be 'ios' or 'android'"
	}
	return sub, ""
}

// subscriber returns the owner whose reports the device follows. Anonymous
// sessions have no owner to notify.
func subscriber(w http.ResponseWriter, req *http.Request) (string, bool) {
	user := getAuthUser(req.Context())
	if user == nil || user.ID == "" {
		http.Error(w, `{"error": "sign in to receive report notifications"}`, http.StatusUnauthorized)
		return "", false
	}
	return user.ID, true
}

// handlePushRegister subscribes a device to "report ready" pushes.
func (r *Router) handlePushRegister(w http.ResponseWriter, req *http.Request) {
	owner, ok := subscriber(w, req)
	if !ok {
		return
	}
	sub, msg := decodeSubscription(req, true)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if r.store == nil {
		http.Error(w, `{"error": "report notifications unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	if err := r.store.RegisterPushToken(req.Context(), owner, sub.Token, sub.Platform); err != nil {
		r.logger.Printf("push: failed to subscribe %s device for %s: %v", sub.Platform, owner, err)
		captureError(req, err, "push subscription")
		http.Error(w, `{"error": "failed to subscribe device"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Printf("push: %s device subscribed to reports for %s", sub.Platform, owner)
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": true})
}

// handlePushUnregister stops report pushes to a device. Only the owner's
// own subscriptions are touched.
func (r *Router) handlePushUnregister(w http.ResponseWriter, req *http.Request) {
	owner, ok := subscriber(w, req)
	if !ok {
		return
	}
	sub, msg := decodeSubscription(req, false)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if r.store == nil {
		http.Error(w, `{"error": "report notifications unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	if err := r.store.UnregisterPushToken(req.Context(), owner, sub.Token); err != nil {
		r.logger.Printf("push: failed to unsubscribe device for %s: %v", owner, err)
		captureError(req, err, "push subscription")
		http.Error(w, `{"error": "failed to unsubscribe device"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Printf("push: device unsubscribed from reports for %s", owner)
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": false})
}
