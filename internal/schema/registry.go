package schema

// Registry of the output table schemas. Field lists and lengths match the
// dashboards that consume the tables; changing them breaks the fixed-schema
// contract of already-published tables.

func str(name string) Field  { return Field{Name: name, Type: TypeString, Length: DefaultFieldLength} }
func flag(name string) Field { return Field{Name: name, Type: TypeString, Length: FlagFieldLength} }
func num(name string) Field  { return Field{Name: name, Type: TypeInteger} }
func dbl(name string) Field  { return Field{Name: name, Type: TypeDouble} }
func date(name string) Field { return Field{Name: name, Type: TypeDate} }

// GroupSnapshot declares the per-group table: one record per group per run.
func GroupSnapshot(name string) Table {
	return Table{
		Name:        name,
		Description: "Snapshot table containing overall group information, metrics, and health scores for organization management.",
		Fields: []Field{
			str("group_id"),
			str("group_title"),
			str("group_summary"),
			str("group_description"),
			str("group_tags"),
			str("group_owner"),
			str("group_owner_name"),
			date("group_created"),
			str("group_type"),
			str("group_sharing_level"),
			num("group_item_count"),
			num("group_member_count"),
			num("external_member_count"),
			flag("has_external_members"),
			str("group_link"),
			num("active_members"),
			dbl("group_item_score"),
			dbl("group_member_score"),
			dbl("avg_views_per_item"),
			num("days_since_content_update"),
			flag("is_recent"),
			flag("is_empty"),
			flag("is_single_member"),
			flag("is_hub"),
			flag("is_site"),
		},
	}
}

// GroupContent declares the per item-group association table.
func GroupContent(name string) Table {
	return Table{
		Name:        name,
		Description: "Content table containing items shared within groups with associated metadata and group relationships.",
		Fields: []Field{
			str("item_id"),
			str("item_title"),
			str("item_owner"),
			str("item_type"),
			date("item_created"),
			date("item_data_updated"),
			num("item_views"),
			str("item_url"),
			str("group_id"),
			str("group_type"),
			str("group_sharing_level"),
			num("days_since_update"),
			flag("in_shared_update_group"),
			flag("in_partnered_collab"),
			flag("in_distributed_collab"),
		},
	}
}

// GroupMembers declares the per user-group membership table.
func GroupMembers(name string) Table {
	return Table{
		Name:        name,
		Description: "Members table containing user membership information across groups with activity metrics.",
		Fields: []Field{
			str("user_name"),
			str("user_email"),
			date("user_last_login"),
			str("user_org_id"),
			date("user_created"),
			str("group_id"),
			str("user_categories"),
			str("user_membership_type"),
			num("days_since_login"),
			flag("is_active"),
		},
	}
}
