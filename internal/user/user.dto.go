package user

type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Timezone *string `json:"timezone,omitempty" validate:"omitempty,max=64"`
}
