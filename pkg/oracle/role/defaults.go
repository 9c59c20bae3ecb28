//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package role

// Defaults returns the standard campus-portal test account table. The
// ceilings and scope sets mirror the backend's permission configuration.
func Defaults() []Role {
	return []Role{
		{
			Name:       "system_admin",
			Code:       "SYSTEM_ADMIN",
			Display:    "System Administrator",
			EmployeeID: "SYSTEM_ADMIN_001",
			LoginName:  "SysAdmin-Chen",
			Password:   "admin123",
			Rank:       1,
			MaxLevel:   LevelEmergency,
			Scopes:     []Scope{ScopeSchoolWide, ScopeDepartment, ScopeGrade, ScopeClass},
		},
		{
			Name:       "principal",
			Code:       "PRINCIPAL",
			Display:    "Principal",
			EmployeeID: "PRINCIPAL_001",
			LoginName:  "Principal-Zhang",
			Password:   "admin123",
			Rank:       1,
			MaxLevel:   LevelEmergency,
			Scopes:     []Scope{ScopeSchoolWide, ScopeDepartment, ScopeGrade, ScopeClass},
		},
		{
			Name:       "academic_admin",
			Code:       "ACADEMIC_ADMIN",
			Display:    "Academic Director",
			EmployeeID: "ACADEMIC_ADMIN_001",
			LoginName:  "Director-Li",
			Password:   "admin123",
			Rank:       2,
			MaxLevel:   LevelImportant,
			Scopes:     []Scope{ScopeSchoolWide, ScopeDepartment, ScopeGrade},
		},
		{
			Name:       "teacher",
			Code:       "TEACHER",
			Display:    "Teacher",
			EmployeeID: "TEACHER_001",
			LoginName:  "Teacher-Wang",
			Password:   "admin123",
			Rank:       3,
			MaxLevel:   LevelRegular,
			Scopes:     []Scope{ScopeDepartment, ScopeClass},
		},
		{
			Name:       "class_teacher",
			Code:       "CLASS_TEACHER",
			Display:    "Class Teacher",
			EmployeeID: "CLASS_TEACHER_001",
			LoginName:  "ClassTeacher-Liu",
			Password:   "admin123",
			Rank:       3,
			MaxLevel:   LevelRegular,
			Scopes:     []Scope{ScopeClass, ScopeGrade},
		},
		{
			Name:       "student",
			Code:       "STUDENT",
			Display:    "Student",
			EmployeeID: "STUDENT_001",
			LoginName:  "Student-Zhang",
			Password:   "admin123",
			Rank:       4,
			MaxLevel:   LevelReminder,
			Scopes:     []Scope{ScopeClass},
		},
	}
}

// DefaultStore builds a Store from [Defaults]. The built-in table is known
// valid, so errors are impossible by construction.
func DefaultStore() *Store {
	s, err := NewStore(Defaults())
	if err != nil {
		panic(err)
	}
	return s
}
