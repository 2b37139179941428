package api

import (
	"context"
	"fmt"
	"net/url"
)

// UserInfo is the user record returned by login, setup and /auth/me.
type UserInfo struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	IsAdmin  bool    `json:"is_admin"`
}

// AuthResponse is returned by /auth/login and /setup/complete.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// SystemInfo is /system/info.
type SystemInfo struct {
	Hostname      string `json:"hostname"`
	OSName        string `json:"os_name"`
	OSVersion     string `json:"os_version"`
	KernelVersion string `json:"kernel_version"`
	Uptime        uint64 `json:"uptime"`
	CPU           struct {
		Model string  `json:"model"`
		Cores int     `json:"cores"`
		Usage float64 `json:"usage"`
	} `json:"cpu"`
	Memory struct {
		Total        uint64  `json:"total"`
		Used         uint64  `json:"used"`
		Available    uint64  `json:"available"`
		UsagePercent float64 `json:"usage_percent"`
	} `json:"memory"`
	LoadAverage struct {
		One     float64 `json:"one"`
		Five    float64 `json:"five"`
		Fifteen float64 `json:"fifteen"`
	} `json:"load_average"`
}

// Disk is one entry of /storage/disks.
type Disk struct {
	Device      string  `json:"device"`
	Name        string  `json:"name"`
	Size        uint64  `json:"size"`
	Used        uint64  `json:"used"`
	MountPoint  *string `json:"mount_point"`
	Filesystem  *string `json:"filesystem"`
	IsRemovable bool    `json:"is_removable"`
}

// Filesystem is one entry of /storage/filesystems.
type Filesystem struct {
	Device     string `json:"device"`
	MountPoint string `json:"mount_point"`
	Filesystem string `json:"filesystem"`
	Total      uint64 `json:"total"`
	Used       uint64 `json:"used"`
	Available  uint64 `json:"available"`
}

// Share is a network share.
type Share struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Protocol string `json:"protocol"`
	Enabled  bool   `json:"enabled"`
}

// Account is a user as listed by /users.
type Account struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	IsAdmin   bool    `json:"is_admin"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// NewAccount is the body of POST /users.
type NewAccount struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// AccountUpdate is the body of PUT /users/{id}.
type AccountUpdate struct {
	Email   *string `json:"email,omitempty"`
	IsAdmin *bool   `json:"is_admin,omitempty"`
}

// Group is a user group.
type Group struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsSystem    bool    `json:"is_system"`
	MemberCount int     `json:"member_count"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// GroupInput is the body of group create/update.
type GroupInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// FileItem is an entry in the file browser.
type FileItem struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Type     string  `json:"type"` // "file" or "folder"
	Size     *uint64 `json:"size"`
	Modified string  `json:"modified"`
	MimeType string  `json:"mime_type,omitempty"`
}

// SetupStatus is /setup/status.
type SetupStatus struct {
	IsComplete bool `json:"is_complete"`
	NeedsSetup bool `json:"needs_setup"`
}

// SetupRequest is the body of /setup/complete.
type SetupRequest struct {
	MachineName   string `json:"machine_name"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
}

// WindowConfig is the default window geometry of an installed app.
type WindowConfig struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	MinWidth  int `json:"min_width"`
	MinHeight int `json:"min_height"`
}

// RegistryEntry is one installed app from /apps/registry.
type RegistryEntry struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Icon      string       `json:"icon"`
	Gradient  string       `json:"gradient"`
	Component string       `json:"component"`
	Window    WindowConfig `json:"window"`
}

// Login authenticates and returns the session token and user.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.Post(ctx, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, "/auth/logout", nil, nil)
}

// Me returns the current user's profile.
func (c *Client) Me(ctx context.Context) (*UserInfo, error) {
	var u UserInfo
	if err := c.Get(ctx, "/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword changes the current user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.Post(ctx, "/auth/change-password", map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
}

// SystemInfo returns host information.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.Get(ctx, "/system/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Disks lists block devices.
func (c *Client) Disks(ctx context.Context) ([]Disk, error) {
	var disks []Disk
	err := c.Get(ctx, "/storage/disks", &disks)
	return disks, err
}

// Filesystems lists mounted filesystems.
func (c *Client) Filesystems(ctx context.Context) ([]Filesystem, error) {
	var fs []Filesystem
	err := c.Get(ctx, "/storage/filesystems", &fs)
	return fs, err
}

// Shares lists network shares.
func (c *Client) Shares(ctx context.Context) ([]Share, error) {
	var shares []Share
	err := c.Get(ctx, "/shares", &shares)
	return shares, err
}

// CreateShare creates a share.
func (c *Client) CreateShare(ctx context.Context, name, path, protocol string) (*Share, error) {
	var s Share
	err := c.Post(ctx, "/shares", Share{Name: name, Path: path, Protocol: protocol}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteShare removes a share.
func (c *Client) DeleteShare(ctx context.Context, id string) error {
	return c.Delete(ctx, "/shares/"+url.PathEscape(id), nil)
}

// Users lists accounts.
func (c *Client) Users(ctx context.Context) ([]Account, error) {
	var users []Account
	err := c.Get(ctx, "/users", &users)
	return users, err
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, u NewAccount) (*Account, error) {
	var a Account
	if err := c.Post(ctx, "/users", u, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateUser changes an account's email or admin flag.
func (c *Client) UpdateUser(ctx context.Context, id string, u AccountUpdate) (*Account, error) {
	var a Account
	if err := c.Put(ctx, "/users/"+url.PathEscape(id), u, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.Delete(ctx, "/users/"+url.PathEscape(id), nil)
}

// Groups lists user groups.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := c.Get(ctx, "/groups", &groups)
	return groups, err
}

// CreateGroup creates a group.
func (c *Client) CreateGroup(ctx context.Context, in GroupInput) (*Group, error) {
	var g Group
	if err := c.Post(ctx, "/groups", in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGroup renames or re-describes a group.
func (c *Client) UpdateGroup(ctx context.Context, id string, in GroupInput) (*Group, error) {
	var g Group
	if err := c.Put(ctx, "/groups/"+url.PathEscape(id), in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGroup removes a group.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.Delete(ctx, "/groups/"+url.PathEscape(id), nil)
}

// GroupMembers lists the members of a group.
func (c *Client) GroupMembers(ctx context.Context, groupID string) ([]UserInfo, error) {
	var members []UserInfo
	err := c.Get(ctx, "/groups/"+url.PathEscape(groupID)+"/members", &members)
	return members, err
}

// AddGroupMember adds a user to a group.
func (c *Client) AddGroupMember(ctx context.Context, groupID, userID string) error {
	return c.Post(ctx, "/groups/"+url.PathEscape(groupID)+"/members",
		map[string]string{"user_id": userID}, nil)
}

// RemoveGroupMember removes a user from a group.
func (c *Client) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	return c.Delete(ctx, fmt.Sprintf("/groups/%s/members/%s",
		url.PathEscape(groupID), url.PathEscape(userID)), nil)
}

// Files lists a directory. An empty path is the storage root.
func (c *Client) Files(ctx context.Context, path string) ([]FileItem, error) {
	var items []FileItem
	err := c.Get(ctx, "/files?path="+url.QueryEscape(path), &items)
	return items, err
}

// CreateFolder creates name inside parent.
func (c *Client) CreateFolder(ctx context.Context, parent, name string) (*FileItem, error) {
	var item FileItem
	err := c.Post(ctx, "/files/folder", map[string]string{"path": parent, "name": name}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteFile removes a file or folder.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	return c.Delete(ctx, "/files?path="+url.QueryEscape(path), nil)
}

// RenameFile renames a file or folder in place.
func (c *Client) RenameFile(ctx context.Context, path, newName string) (*FileItem, error) {
	var item FileItem
	err := c.Patch(ctx, "/files/rename", map[string]string{"path": path, "new_name": newName}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetupStatus reports whether first-run setup has been done.
func (c *Client) SetupStatus(ctx context.Context) (*SetupStatus, error) {
	var s SetupStatus
	if err := c.Get(ctx, "/setup/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CompleteSetup creates the initial admin and returns its session.
func (c *Client) CompleteSetup(ctx context.Context, req SetupRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Post(ctx, "/setup/complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AppRegistry lists installed apps that open in a window.
func (c *Client) AppRegistry(ctx context.Context) ([]RegistryEntry, error) {
	var entries []RegistryEntry
	err := c.Get(ctx, "/apps/registry", &entries)
	return entries, err
}

// AppTranslations fetches an installed app's string table for locale.
// The backend falls back to English and then to an empty object.
func (c *Client) AppTranslations(ctx context.Context, appID, locale string) (map[string]any, error) {
	table := map[string]any{}
	err := c.Get(ctx, fmt.Sprintf("/apps/%s/i18n/%s", url.PathEscape(appID), url.PathEscape(locale)), &table)
	return table, err
}
